package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the admin API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>whatsnew-admin API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// OpenAPI document for the admin API.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "whatsnew-admin", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Edit": {"type":"object","required":["op"],"properties":{
        "op":{"type":"string","enum":["set_scalar","set_row_field","set_rich_text","append_row","remove_row","append_nested","remove_nested"]},
        "path":{"type":"string"},"collection":{"type":"string"},"index":{"type":"integer"},
        "field":{"type":"string"},"nested_index":{"type":"integer"},"value":{"type":"string"},
        "format":{"type":"string","enum":["html","markdown"]}}},
      "Error": {"type":"object","properties":{"error":{"type":"string"}}}
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/features": { "get": { "summary": "Landing page feature cards", "security": [], "responses": { "200": { "description": "cards" } } } },
    "/api/schema": { "get": { "summary": "Canonical document schema with row templates", "responses": { "200": { "description": "schema" } } } },
    "/api/whatsnew": { "get": { "summary": "List records (id, title, excerpt)", "responses": { "200": { "description": "records" }, "502": { "description": "upstream failure" } } } },
    "/api/whatsnew/{id}": {
      "get": { "summary": "Fetch one record", "responses": { "200": { "description": "record" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a record upstream", "responses": { "200": { "description": "deleted" }, "502": { "description": "upstream failure" } } }
    },
    "/api/whatsnew/{id}/edit": { "post": { "summary": "Open an edit draft on a record", "responses": { "201": { "description": "draft" } } } },
    "/api/drafts": { "post": { "summary": "Open an add draft from the empty template", "responses": { "201": { "description": "draft" } } } },
    "/api/drafts/{id}": {
      "get": { "summary": "Get a draft", "responses": { "200": { "description": "draft" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Cancel a draft", "responses": { "204": { "description": "cancelled" }, "409": { "description": "submit in flight" } } }
    },
    "/api/drafts/{id}/edits": {
      "post": { "summary": "Apply one edit or {edits:[...]} in order", "requestBody": { "content": { "application/json": { "schema": { "$ref": "#/components/schemas/Edit" } } } }, "responses": { "200": { "description": "draft" }, "400": { "description": "bad edit" }, "409": { "description": "submit in flight" } } }
    },
    "/api/drafts/{id}/undo": { "post": { "summary": "Undo the last committed edit", "responses": { "200": { "description": "draft" }, "409": { "description": "nothing to undo" } } } },
    "/api/drafts/{id}/submit": { "post": { "summary": "Sanitize and create or update upstream", "responses": { "200": { "description": "submitted" }, "409": { "description": "already in flight" }, "502": { "description": "upstream failure" } } } },
    "/api/drafts/{id}/news/import": { "post": { "summary": "Append RSS items as news rows", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"feeds":{"type":"array","items":{"type":"string"}},"limit":{"type":"integer"}}}}}}, "responses": { "200": { "description": "imported" }, "502": { "description": "all feeds failed" } } } },
    "/api/submissions": { "get": { "summary": "Recent submissions", "parameters": [ { "name": "limit", "in": "query", "schema": { "type": "integer" } } ], "responses": { "200": { "description": "entries" } } } },
    "/api/submissions/{draftId}": { "get": { "summary": "One submission entry", "responses": { "200": { "description": "entry" }, "404": { "description": "not found" } } } },
    "/api/submissions/{draftId}/snapshot": { "get": { "summary": "Archived snapshot of a submission", "responses": { "200": { "description": "document" }, "404": { "description": "no snapshot" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
