// Package docs holds the OpenAPI description of the gdp HTTP API served at /swagger.
// Regenerate with `swag init -g cmd/gdp/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is healthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}},
                    "503": {"description": "Service is unhealthy", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/live": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "Service is alive",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "status": {"type": "string"},
                                "timestamp": {"type": "string"}
                            }
                        }
                    }
                }
            }
        },
        "/api/v1/tools": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Catalog"],
                "summary": "List tools",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "count": {"type": "integer"},
                                                "tools": {"type": "array", "items": {"$ref": "#/definitions/driver.ToolInfo"}}
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/devices": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Catalog"],
                "summary": "List devices",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "count": {"type": "integer"},
                                                "devices": {"type": "array", "items": {"$ref": "#/definitions/device.Descriptor"}}
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/api/v1/devices/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Catalog"],
                "summary": "Get device",
                "parameters": [
                    {"type": "string", "description": "Part name or alias", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/device.Descriptor"}}}
                            ]
                        }
                    },
                    "404": {"description": "Unknown device", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/ports": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Discovery"],
                "summary": "List ports",
                "parameters": [
                    {"enum": ["all", "serial", "usb"], "type": "string", "default": "all", "description": "Scanner type", "name": "type", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "object",
                                            "properties": {
                                                "count": {"type": "integer"},
                                                "ports": {"type": "array", "items": {"$ref": "#/definitions/discovery.DiscoveredPort"}}
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "500": {"description": "Scan failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/v1/probe": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Probe target",
                "parameters": [
                    {"description": "Session options and reads", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/service.ProbeRequest"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {"type": "object", "properties": {"data": {"$ref": "#/definitions/service.ProbeResult"}}}
                            ]
                        }
                    },
                    "400": {"description": "Missing or unsupported parameter", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "409": {"description": "Tool busy", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "422": {"description": "Target verification failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "502": {"description": "Tool error", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "device.Descriptor": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "aliases": {"type": "array", "items": {"type": "string"}},
                "vcc_min": {"type": "number"},
                "vcc_max": {"type": "number"},
                "signature": {"type": "array", "items": {"type": "integer"}},
                "signature_space": {"type": "string"},
                "interfaces": {"type": "array", "items": {"type": "string"}}
            }
        },
        "discovery.DiscoveredPort": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "port": {"type": "string"},
                "vendor_id": {"type": "string"},
                "product_id": {"type": "string"},
                "serial_number": {"type": "string"},
                "product": {"type": "string"},
                "tool": {"type": "string"},
                "location": {"type": "string"}
            }
        },
        "driver.ToolInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "aliases": {"type": "array", "items": {"type": "string"}},
                "interfaces": {"type": "array", "items": {"type": "string"}},
                "usb_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.CheckResult": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "data": {"type": "object", "additionalProperties": true}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "service": {"type": "string"},
                "version": {"type": "string"},
                "uptime": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.CheckResult"}}
            }
        },
        "service.MemoryRead": {
            "type": "object",
            "properties": {
                "space": {"type": "string"},
                "offset": {"type": "integer"},
                "data": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "service.ProbeRequest": {
            "type": "object",
            "properties": {
                "tool": {"type": "string"},
                "device": {"type": "string"},
                "interface": {"type": "string"},
                "port": {"type": "string"},
                "serial": {"type": "string"},
                "baud": {"type": "integer"},
                "frequency": {"type": "integer"},
                "skip_voltage_check": {"type": "boolean"},
                "skip_signature_check": {"type": "boolean"},
                "reads": {"type": "array", "items": {"$ref": "#/definitions/service.ReadRequest"}}
            }
        },
        "service.ProbeResult": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "tool": {"type": "string"},
                "device": {"type": "string"},
                "interface": {"type": "string"},
                "vcc_min": {"type": "string"},
                "vcc_max": {"type": "string"},
                "expected_signature": {"type": "string"},
                "reads": {"type": "array", "items": {"$ref": "#/definitions/service.MemoryRead"}},
                "duration": {"type": "integer"}
            }
        },
        "service.ReadRequest": {
            "type": "object",
            "properties": {
                "space": {"type": "string"},
                "offset": {"type": "integer"},
                "length": {"type": "integer"}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8085",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "gdp API",
	Description:      "Generic device programmer: tool and part catalog, port discovery and verified target sessions",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
