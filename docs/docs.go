// Package docs registers the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
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
        "/orders": {
            "post": {
                "tags": ["Orders"],
                "summary": "Submit an order",
                "operationId": "createOrder",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Order payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateOrderResponse"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.OrderErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": ["Orders"],
                "summary": "Get an order",
                "operationId": "getOrder",
                "produces": ["application/json"],
                "parameters": [{"minimum": 1, "type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Order not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}/restaurant": {
            "post": {
                "tags": ["Orders"],
                "summary": "Assign a restaurant to an order",
                "operationId": "assignRestaurant",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Restaurant", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AssignRestaurantRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Order or restaurant not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Restaurant cannot fulfil the order, or order completed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/orders/{id}/status": {
            "post": {
                "tags": ["Orders"],
                "summary": "Advance an order's status",
                "operationId": "updateOrderStatus",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Order ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Status would not move forward", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/dispatcher/orders": {
            "get": {
                "tags": ["Dispatcher"],
                "summary": "Dispatcher view",
                "operationId": "listDispatcherOrders",
                "parameters": [
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "headers": {"ETag": {"type": "string", "description": "Weak ETag for current result"}}},
                    "304": {"description": "Not Modified"}
                }
            }
        },
        "/products": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List offered products",
                "operationId": "listProducts",
                "parameters": [{"type": "string", "description": "Search text", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            }
        },
        "/products/availability": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Availability matrix",
                "operationId": "productAvailability",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/restaurants": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List restaurants",
                "operationId": "listRestaurants",
                "parameters": [{"type": "string", "description": "Search text", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/restaurants/{id}/menu/{product_id}": {
            "put": {
                "tags": ["Catalog"],
                "summary": "Set a product's availability at a restaurant",
                "operationId": "setMenuAvailability",
                "parameters": [
                    {"minimum": 1, "type": "integer", "description": "Restaurant ID", "name": "id", "in": "path", "required": true},
                    {"minimum": 1, "type": "integer", "description": "Product ID", "name": "product_id", "in": "path", "required": true},
                    {"description": "Availability", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SetAvailabilityRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Restaurant or product not found"}}
            }
        },
        "/coordinates/refresh": {
            "post": {
                "tags": ["Coordinates"],
                "summary": "Re-geocode an address",
                "operationId": "refreshCoordinates",
                "parameters": [
                    {"description": "Address", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RefreshCoordinatesRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad request"}}
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"}
            }
        },
        "handlers.OrderErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "validation_failed"},
                "message": {"type": "string"},
                "error": {"type": "string"},
                "field": {"type": "string", "example": "phonenumber"}
            }
        },
        "handlers.CreateOrderRequest": {
            "type": "object",
            "properties": {
                "products": {"type": "array", "items": {"type": "object", "properties": {"product": {"type": "integer"}, "quantity": {"type": "integer"}}}},
                "firstname": {"type": "string"},
                "lastname": {"type": "string"},
                "phonenumber": {"type": "string", "example": "89991234567"},
                "address": {"type": "string"},
                "comment": {"type": "string"},
                "payment_method": {"type": "string", "enum": ["cash", "card", "unspecified"]}
            }
        },
        "handlers.CreateOrderResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"},
                "id": {"type": "integer"},
                "order_status": {"type": "string", "example": "new"},
                "total": {"type": "string", "example": "449.80"}
            }
        },
        "handlers.AssignRestaurantRequest": {
            "type": "object",
            "required": ["restaurant_id"],
            "properties": {"restaurant_id": {"type": "integer", "example": 3}}
        },
        "handlers.UpdateStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["new", "restaurant", "courier", "completed"]}}
        },
        "handlers.SetAvailabilityRequest": {
            "type": "object",
            "required": ["availability"],
            "properties": {"availability": {"type": "boolean"}}
        },
        "handlers.RefreshCoordinatesRequest": {
            "type": "object",
            "required": ["address"],
            "properties": {"address": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Foodcart Dispatch API",
	Description:      "Order intake, restaurant matching and dispatch for a food delivery service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
