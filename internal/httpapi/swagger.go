//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// SwaggerInfo describes the API for the swagger UI mounted at /swagger/.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "llamabridge API",
	Description:      "Bring-up HTTP API for on-device model sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the swagger UI and doc.json.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

const docTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "description": "{{escape .Description}}",
    "title": "{{.Title}}",
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "paths": {
    "/healthz": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "ok"}}}},
    "/readyz": {"get": {"summary": "Default slot readiness", "responses": {"200": {"description": "ready"}, "503": {"description": "not ready"}}}},
    "/models": {"get": {"summary": "List model files", "produces": ["application/json"], "responses": {"200": {"description": "models"}}}},
    "/status": {"get": {"summary": "Session status", "produces": ["application/json"], "responses": {"200": {"description": "status", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}}},
    "/load": {"post": {"summary": "Load a model into the default slot", "consumes": ["application/json"], "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.LoadRequest"}}], "responses": {"200": {"description": "loaded", "schema": {"$ref": "#/definitions/types.LoadResponse"}}, "404": {"description": "not found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}, "409": {"description": "already loading", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}, "422": {"description": "corrupt format", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}, "507": {"description": "out of memory", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}},
    "/unload": {"post": {"summary": "Unload the default slot", "responses": {"200": {"description": "unloaded", "schema": {"$ref": "#/definitions/types.LoadResponse"}}}}},
    "/generate": {"post": {"summary": "Generate with the default slot", "consumes": ["application/json"], "produces": ["application/json", "application/x-ndjson"], "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}], "responses": {"200": {"description": "result", "schema": {"$ref": "#/definitions/types.GenerateResponse"}}, "409": {"description": "not loaded", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}, "429": {"description": "busy", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}},
    "/sessions": {"post": {"summary": "Create a session", "responses": {"201": {"description": "created", "schema": {"$ref": "#/definitions/types.CreateSessionResponse"}}}}},
    "/sessions/{id}": {"delete": {"summary": "Destroy a session", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"204": {"description": "destroyed"}, "404": {"description": "unknown session", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}}}},
    "/sessions/{id}/ready": {"get": {"summary": "Session readiness", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "readiness", "schema": {"$ref": "#/definitions/types.ReadyResponse"}}}}}
  },
  "definitions": {
    "types.LoadRequest": {"type": "object", "properties": {"path": {"type": "string", "example": "~/models/tinyllama.Q4_K_M.gguf"}}},
    "types.LoadResponse": {"type": "object", "properties": {"ok": {"type": "boolean"}, "state": {"type": "string", "example": "ready"}}},
    "types.GenerateRequest": {"type": "object", "properties": {"prompt": {"type": "string", "example": "2+2="}, "system_prompt": {"type": "string", "example": "You are terse."}, "max_tokens": {"type": "integer", "example": 256}, "temperature": {"type": "number", "example": 0.7}, "stream": {"type": "boolean"}}},
    "types.GenerateResponse": {"type": "object", "properties": {"text": {"type": "string"}, "tokens_produced": {"type": "integer"}, "finished": {"type": "boolean"}, "finish_reason": {"type": "string"}, "error_kind": {"type": "string"}, "done": {"type": "boolean"}}},
    "types.CreateSessionResponse": {"type": "object", "properties": {"id": {"type": "string"}}},
    "types.ReadyResponse": {"type": "object", "properties": {"ready": {"type": "boolean"}}},
    "types.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "integer"}, "kind": {"type": "string"}}},
    "types.StatusResponse": {"type": "object", "properties": {"engine": {"type": "string"}, "echo_mode": {"type": "boolean"}, "budget_mb": {"type": "integer"}, "used_est_mb": {"type": "integer"}, "uptime_seconds": {"type": "integer"}, "sessions": {"type": "array", "items": {"type": "object"}}}}
  }
}`
