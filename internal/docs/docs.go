// Package docs registers the OpenAPI document served under /swagger/.
package docs

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
        "/years/{year}/participants": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "List active participants",
                "parameters": [
                    {"type": "integer", "name": "year", "in": "path", "required": true},
                    {"type": "string", "name": "area", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "Register a participant",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Identity already registered"}}
            }
        },
        "/years/{year}/participants/{id}": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "Edit a participant record",
                "parameters": [
                    {"type": "integer", "name": "year", "in": "path", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Identity collision"}, "422": {"description": "Record removed"}}
            }
        },
        "/years/{year}/leaders": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["leaders"],
                "summary": "Make a participant an area leader",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Leads another area or ambiguous identity"}}
            }
        },
        "/years/{year}/leaders/demote": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["leaders"],
                "summary": "Remove a participant's leadership",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/years/{year}/reassignments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "Move a participant to another area",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Already in that area"}}
            }
        },
        "/years/{year}/removals": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "Remove a participant",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/years/{year}/invariants": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["leaders"],
                "summary": "Audit a year's roster",
                "parameters": [{"type": "integer", "name": "year", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/years/{year}/changes": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["changes"],
                "summary": "Read the change log",
                "parameters": [
                    {"type": "integer", "name": "year", "in": "path", "required": true},
                    {"type": "string", "name": "area", "in": "query"},
                    {"type": "string", "name": "since", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/years/{year}/areas/{area}/digest": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["changes"],
                "summary": "Email an area's changes to its leaders",
                "parameters": [
                    {"type": "integer", "name": "year", "in": "path", "required": true},
                    {"type": "string", "name": "area", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/participants/latest": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["participants"],
                "summary": "Look up a returning volunteer",
                "parameters": [
                    {"type": "string", "name": "first_name", "in": "query", "required": true},
                    {"type": "string", "name": "last_name", "in": "query", "required": true},
                    {"type": "string", "name": "email", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the admin JWT.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Bird Count Registry API",
	Description:      "Admin API for participant registration, area leadership and the change log.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
