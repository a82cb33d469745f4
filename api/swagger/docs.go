// Package swagger registers the OpenAPI document served by the Swagger UI
// in dev mode. Regenerate with:
//
//	swag init -g cmd/mediatheme/main.go -o api/swagger --outputTypes go
package swagger

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
        "/api/config": {
            "get": {
                "description": "Returns the stored configuration with missing fields filled from defaults.",
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "Get configuration",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            },
            "post": {
                "description": "Validates the document, snapshots the current file, and replaces it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "Save configuration",
                "parameters": [{"description": "Configuration document", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "Saved", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "400": {"description": "Invalid JSON", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "500": {"description": "Validation or write failure", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/config/backups": {
            "get": {
                "description": "Returns backup snapshots sorted by timestamp, newest first.",
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "List backups",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/config/backups/{name}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "Delete backup",
                "parameters": [{"type": "string", "description": "Backup filename", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "404": {"description": "Backup not found", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/config/backups/{name}/restore": {
            "post": {
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "Restore backup",
                "parameters": [{"type": "string", "description": "Backup filename", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "404": {"description": "Backup not found", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/config/system": {
            "get": {
                "description": "Reports config directory writability, free disk space, and process memory.",
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "System information",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/enhancer": {
            "get": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Enhancer status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/enhancer/config": {
            "get": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Get runtime config",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            },
            "put": {
                "description": "Merges the given fields into the runtime config and re-applies the theme if it changed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Update runtime config",
                "parameters": [{"description": "Partial config", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/enhancer/config/cache": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Clear cached runtime config",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/enhancer/config/export": {
            "get": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Export runtime config",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "501": {"description": "Not Implemented", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/enhancer/config/import": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Import runtime config",
                "parameters": [{"description": "Export document", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/enhancer/config/reset": {
            "post": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Reset runtime config",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/enhancer/config/value/{path}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Get config value",
                "parameters": [{"type": "string", "description": "Dot-separated field path", "name": "path", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            },
            "put": {
                "description": "A value that fails validation leaves the field at its default.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Set config value",
                "parameters": [
                    {"type": "string", "description": "Dot-separated field path", "name": "path", "in": "path", "required": true},
                    {"description": "JSON value", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/enhancer/reload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Reload enhancer",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/enhancer/theme/{id}": {
            "post": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "Change theme",
                "parameters": [{"type": "string", "description": "Theme id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/enhancer/themes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["enhancer"],
                "summary": "List themes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/events": {
            "get": {
                "description": "WebSocket stream of config and theme events. Filter with ?topics=config.*,enhancer.*; resume with ?since=<seq>.",
                "tags": ["events"],
                "summary": "Event stream",
                "parameters": [
                    {"type": "string", "description": "Topic names or group.* patterns", "name": "topics", "in": "query"},
                    {"type": "integer", "description": "Last seq received", "name": "since", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        },
        "/api/health": {
            "get": {
                "description": "Returns the service name and version.",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/api/themes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["themes"],
                "summary": "List themes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.Envelope"}}}
            }
        },
        "/themes/{file}": {
            "get": {
                "description": "Returns the CSS text of a bundled or user theme.",
                "produces": ["text/css"],
                "tags": ["themes"],
                "summary": "Theme stylesheet",
                "parameters": [{"type": "string", "description": "Theme file, e.g. dark-modern.css", "name": "file", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "CSS", "schema": {"type": "string"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "server.Envelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "data": {},
                "error": {"type": "string", "example": "backup not found"},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/emby-ui-plugin",
	Schemes:          []string{},
	Title:            "mediatheme API",
	Description:      "Theme assets, config persistence, and enhancer control for the media-server theming add-on.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
