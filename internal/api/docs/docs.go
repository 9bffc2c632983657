// Package docs registers the swagger spec for the lexa inventory API so
// gin-swagger can serve it at /swagger/*any.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"swagger": "2.0",
	"info": {
		"title": "Lexa Inventory API",
		"description": "Read-only JSON view of the container DNS inventory lexa serves over DNS.",
		"version": "1.0"
	},
	"basePath": "/",
	"paths": {
		"/containers": {
			"get": {
				"tags": ["containers"],
				"summary": "List containers",
				"parameters": [{"name": "name", "in": "query", "type": "string", "required": false}],
				"responses": {"200": {"description": "OK"}}
			}
		},
		"/health": {
			"get": {
				"tags": ["system"],
				"summary": "Health check",
				"responses": {"200": {"description": "OK"}}
			}
		},
		"/stats": {
			"get": {
				"tags": ["system"],
				"summary": "Server statistics",
				"responses": {"200": {"description": "OK"}}
			}
		}
	}
}`

// SwaggerInfo holds the exported spec registered with swag at init time.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Lexa Inventory API",
	Description:      "Read-only JSON view of the container DNS inventory lexa serves over DNS.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
