// Package docs holds the OpenAPI document for the HTTP API.
package docs

import "github.com/swaggo/swag"

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
        "/admin/charges": {
            "get": {
                "tags": ["admin"],
                "summary": "Customer charges overview",
                "parameters": [
                    {
                        "type": "string",
                        "name": "search",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "expand",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/customers/{id}/rate": {
            "put": {
                "tags": ["admin"],
                "summary": "Update a customer\u0027s rate profile",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/zip-rates": {
            "get": {
                "tags": ["admin"],
                "summary": "List the zip rate catalog",
                "parameters": [

                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            },
            "post": {
                "tags": ["admin"],
                "summary": "Add a zip rate",
                "parameters": [

                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/zip-rates/{id}": {
            "put": {
                "tags": ["admin"],
                "summary": "Update a zip rate",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            },
            "delete": {
                "tags": ["admin"],
                "summary": "Delete a zip rate",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/import/usage": {
            "post": {
                "tags": ["admin"],
                "summary": "Import a usage file",
                "parameters": [
                    {
                        "type": "file",
                        "name": "file",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/detect-anomalies": {
            "post": {
                "tags": ["admin"],
                "summary": "Run anomaly detection for all customers",
                "parameters": [

                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/admin/generate-historical-bills": {
            "post": {
                "tags": ["admin"],
                "summary": "Backfill historical bills for all customers",
                "parameters": [

                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/bills": {
            "get": {
                "tags": ["billing"],
                "summary": "List bills, newest period first",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "customer_id",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/bills/{id}": {
            "get": {
                "tags": ["billing"],
                "summary": "Get one bill",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/bills/{id}/invoice": {
            "get": {
                "tags": ["billing"],
                "summary": "Download a bill invoice",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "format",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/customers/{id}/statement": {
            "get": {
                "tags": ["billing"],
                "summary": "Download a customer\u0027s billing statement",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "format",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/customers/{id}/statement/email": {
            "post": {
                "tags": ["billing"],
                "summary": "E-mail a customer\u0027s billing statement",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/billing/customers/{id}/rate": {
            "get": {
                "tags": ["billing"],
                "summary": "Effective rate of one customer",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/alerts": {
            "get": {
                "tags": ["alerts"],
                "summary": "List usage anomaly alerts with severity",
                "parameters": [
                    {
                        "type": "string",
                        "name": "status",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "integer",
                        "name": "customer_id",
                        "in": "query",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        },
        "/alerts/{id}/acknowledge": {
            "post": {
                "tags": ["alerts"],
                "summary": "Mark an alert as acknowledged",
                "parameters": [
                    {
                        "type": "integer",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "VALIDATION_ERROR"},
                    "403": {"description": "FORBIDDEN"},
                    "404": {"description": "NOT_FOUND"},
                    "409": {"description": "CONFLICT"},
                    "502": {"description": "UPSTREAM_ERROR"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "eBillManager API",
	Description:      "Rate resolution, bill aggregation and statement documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
