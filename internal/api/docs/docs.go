// Package docs holds the generated-style OpenAPI document for the API.
// In the upstream project this file is produced by `swag init` from the
// @Summary/@Tags/@Router annotations on the handlers and is not hand
// edited; it is checked in here so the module builds without a swag
// generation step.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Watchpost API",
        "description": "Agent-native uptime monitoring: probes, incidents, status pages, and notifications.",
        "version": "1.0"
    },
    "basePath": "/api/v1",
    "paths": {
        "/monitors": {
            "get": {
                "tags": ["monitors"],
                "summary": "List public monitors",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "tag", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["monitors"],
                "summary": "Create monitor",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/monitors/{id}": {
            "get": {"tags": ["monitors"], "summary": "Get monitor", "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["monitors"], "summary": "Update monitor", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["monitors"], "summary": "Delete monitor", "responses": {"204": {"description": "No Content"}}}
        },
        "/incidents/{id}": {
            "get": {"tags": ["incidents"], "summary": "Get incident", "responses": {"200": {"description": "OK"}}}
        },
        "/probe": {
            "post": {"tags": ["locations"], "summary": "Batched remote probe ingest", "responses": {"200": {"description": "OK"}}}
        },
        "/status": {
            "get": {"tags": ["aggregates"], "summary": "System-wide status summary", "responses": {"200": {"description": "OK"}}}
        },
        "/dashboard": {
            "get": {"tags": ["aggregates"], "summary": "Dashboard aggregate", "responses": {"200": {"description": "OK"}}}
        },
        "/health": {
            "get": {"tags": ["meta"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger metadata, matching the shape
// swag init writes for consumption by http-swagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Watchpost API",
	Description:      "Agent-native uptime monitoring: probes, incidents, status pages, and notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
