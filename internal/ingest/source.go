package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
	"github.com/SofiaQuintana/products-inventory/pkg/httpclient"
)

// ErrMalformedRow marks a row the reader could not parse. The run skips it.
var ErrMalformedRow = errors.New("malformed row")

// RowSource yields rows keyed by header name. Next returns io.EOF after the
// last row.
type RowSource interface {
	Next() (map[string]string, error)
	Close() error
}

// Fetcher downloads remote sources. *httpclient.CircuitBreakerClient
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// OpenSource opens location as a row source: an http(s) URL is downloaded
// with fetcher, a .xlsx path is read as a workbook, anything else as CSV.
// Failing to open is reported as apperrors.ErrSourceUnavailable.
func OpenSource(ctx context.Context, location string, fetcher Fetcher) (RowSource, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return openRemote(ctx, location, u, fetcher)
	}

	if isWorkbook(location) {
		f, err := excelize.OpenFile(location)
		if err != nil {
			return nil, apperrors.SourceUnavailable(location, err)
		}
		src, err := newWorkbookSource(f)
		if err != nil {
			return nil, apperrors.SourceUnavailable(location, err)
		}
		return src, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, apperrors.SourceUnavailable(location, err)
	}
	src, err := newCSVSource(f)
	if err != nil {
		return nil, apperrors.SourceUnavailable(location, err)
	}
	return src, nil
}

func openRemote(ctx context.Context, location string, u *url.URL, fetcher Fetcher) (RowSource, error) {
	if fetcher == nil {
		return nil, apperrors.SourceUnavailable(location, errors.New("remote sources are not enabled"))
	}
	resp, err := fetcher.Get(ctx, location)
	if err != nil {
		return nil, apperrors.SourceUnavailable(location, err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return nil, apperrors.SourceUnavailable(location, err)
	}

	if isWorkbook(u.Path) {
		defer func() { _ = resp.Body.Close() }()
		f, err := excelize.OpenReader(resp.Body)
		if err != nil {
			return nil, apperrors.SourceUnavailable(location, err)
		}
		src, err := newWorkbookSource(f)
		if err != nil {
			return nil, apperrors.SourceUnavailable(location, err)
		}
		return src, nil
	}

	src, err := newCSVSource(resp.Body)
	if err != nil {
		return nil, apperrors.SourceUnavailable(location, err)
	}
	return src, nil
}

func isWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

type csvSource struct {
	r      *csv.Reader
	body   io.Closer
	header []string
}

// newCSVSource reads the header row. An empty input yields a source with
// no rows.
func newCSVSource(rc io.ReadCloser) (*csvSource, error) {
	br := bufio.NewReader(rc)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		_ = rc.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	return &csvSource{r: r, body: rc, header: trimAll(header)}, nil
}

func (s *csvSource) Next() (map[string]string, error) {
	if s.header == nil {
		return nil, io.EOF
	}
	record, err := s.r.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}
		return nil, err
	}
	return zip(s.header, record), nil
}

func (s *csvSource) Close() error {
	return s.body.Close()
}

type workbookSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
}

// newWorkbookSource streams the first sheet; its first row is the header.
func newWorkbookSource(f *excelize.File) (*workbookSource, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open sheet %s: %w", sheets[0], err)
	}

	s := &workbookSource{file: f, rows: rows}
	if rows.Next() {
		header, err := rows.Columns()
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("read header: %w", err)
		}
		s.header = trimAll(header)
	}
	return s, nil
}

func (s *workbookSource) Next() (map[string]string, error) {
	if s.header == nil {
		return nil, io.EOF
	}
	for s.rows.Next() {
		cells, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}
		if blank(cells) {
			continue
		}
		return zip(s.header, cells), nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *workbookSource) Close() error {
	return errors.Join(s.rows.Close(), s.file.Close())
}

// zip pairs values with header names. Extra values are dropped and missing
// ones are absent from the row.
func zip(header, values []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(values) {
			row[name] = values[i]
		}
	}
	return row
}

func trimAll(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimSpace(n)
	}
	return out
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
