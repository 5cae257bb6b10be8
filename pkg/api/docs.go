package api

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/status": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Store status",
                "description": "Cursor position, device geometry, activity counters and whether the current record verifies",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.StatusResponse"}}
                }
            }
        },
        "/record": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json", "application/octet-stream"],
                "tags": ["record"],
                "summary": "Read the current record",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.RecordResponse"}},
                    "404": {"description": "No valid record stored"},
                    "409": {"description": "Store not initialized"}
                }
            },
            "put": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/octet-stream", "application/json"],
                "produces": ["application/json"],
                "tags": ["record"],
                "summary": "Store a new record",
                "description": "The body is the raw payload, or {\"hex\": \"...\"} with Content-Type application/json. It must be exactly the configured record size.",
                "parameters": [
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/api.RecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Payload has the wrong size"},
                    "409": {"description": "Store not initialized"}
                }
            }
        },
        "/record/raw": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["record"],
                "summary": "Decode the current record without validating it",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.RawRecordResponse"}}
                }
            }
        },
        "/verify": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["record"],
                "summary": "Check the current record against its checksum",
                "parameters": [
                    {"type": "integer", "description": "Payload size, defaults to the record size", "name": "size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid size"}
                }
            }
        },
        "/format": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["device"],
                "summary": "Erase the device and rescan it",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/wear": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["device"],
                "summary": "Per-cell write distribution since the server started",
                "parameters": [
                    {"type": "integer", "description": "Histogram buckets", "name": "buckets", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Wear tracking is not enabled"}
                }
            }
        }
    },
    "definitions": {
        "api.RecordRequest": {
            "type": "object",
            "properties": {"hex": {"type": "string"}}
        },
        "api.RecordResponse": {
            "type": "object",
            "properties": {
                "base_address": {"type": "integer"},
                "size": {"type": "integer"},
                "hex": {"type": "string"}
            }
        },
        "api.RawRecordResponse": {
            "type": "object",
            "properties": {
                "base_address": {"type": "integer"},
                "marker": {"type": "string"},
                "checksum": {"type": "string"},
                "computed": {"type": "string"},
                "payload": {"type": "string"},
                "valid": {"type": "boolean"}
            }
        },
        "api.StatusResponse": {
            "type": "object",
            "properties": {
                "initialized": {"type": "boolean"},
                "base_address": {"type": "integer"},
                "device_size": {"type": "integer"},
                "record_size": {"type": "integer"},
                "max_payload_size": {"type": "integer"},
                "valid": {"type": "boolean"},
                "stats": {"type": "object"},
                "error": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Wear-levelled record store API",
	Description:      "REST API for a single wear-levelled record kept on an EEPROM-style device.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
