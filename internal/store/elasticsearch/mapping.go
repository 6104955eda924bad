package elasticsearch

// DefaultIndexName is the default index for catalog products.
const DefaultIndexName = "catalog_products"

// searchFields are the multi_match fields with their relevance boosts.
var searchFields = []string{"title^10", "category^7", "brand^5", "sku.text^3", "product_type^1"}

// indexMapping analyzes searchable fields in English and keeps a lowercase
// keyword copy of the title for prefix suggestions. The SKU is the document
// id and a keyword field.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": {
          "type": "custom",
          "filter": ["lowercase", "asciifolding"]
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "sku":          { "type": "keyword", "fields": { "text": { "type": "text" } } },
      "title":        { "type": "text", "analyzer": "english", "fields": { "prefix": { "type": "keyword", "normalizer": "lowercase_normalizer", "ignore_above": 512 } } },
      "category":     { "type": "text", "analyzer": "english" },
      "brand":        { "type": "text", "analyzer": "english" },
      "product_type": { "type": "text", "analyzer": "english" },
      "price":        { "type": "double" },
      "description":  { "type": "text", "index": false },
      "createdAt":    { "type": "date" },
      "updatedAt":    { "type": "date" }
    }
  }
}`
