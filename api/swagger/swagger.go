package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "MASE Audit API",
        "description": "Compliance audit backend for the MASE referential",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Accounts, sessions and password flows"},
        {"name": "Onboarding", "description": "Company questionnaire gate"},
        {"name": "Dashboard", "description": "Aggregated compliance overview"},
        {"name": "Audits", "description": "Audit sessions, documents and history"},
        {"name": "Generations", "description": "Document generation runs"},
        {"name": "Registry", "description": "Per-user document registry"},
        {"name": "Reports", "description": "Asynchronous report exports"},
        {"name": "Referential", "description": "Read-only MASE referential"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/forgot-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Start password reset",
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/auth/callback": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Exchange reset code for a reset token",
                "parameters": [
                    {"name": "code", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unknown or expired code"}
                }
            }
        },
        "/auth/reset-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Reset password with token",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/onboarding": {
            "get": {
                "tags": ["Onboarding"],
                "summary": "Questionnaire status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Onboarding"],
                "summary": "Submit questionnaire",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OnboardingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Incomplete questionnaire"}
                }
            }
        },
        "/onboarding/{userId}": {
            "delete": {
                "tags": ["Onboarding"],
                "summary": "Reset a user's onboarding gate (admin)",
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Admin role required"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Compliance overview",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audits": {
            "get": {
                "tags": ["Audits"],
                "summary": "Audit history, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Audits"],
                "summary": "Start an audit session",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/audits/latest": {
            "get": {
                "tags": ["Audits"],
                "summary": "Latest completed audit",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No completed audit yet"}
                }
            }
        },
        "/audits/{id}": {
            "get": {
                "tags": ["Audits"],
                "summary": "Session detail with documents and results",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown session"}
                }
            }
        },
        "/audits/{id}/documents": {
            "post": {
                "tags": ["Audits"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session already completed"}
                }
            }
        },
        "/audits/{id}/documents/{documentId}/result": {
            "post": {
                "tags": ["Audits"],
                "summary": "Record a document analysis result",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "documentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DocumentResultRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/audits/{id}/complete": {
            "post": {
                "tags": ["Audits"],
                "summary": "Complete the session with the global score",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/generations": {
            "get": {
                "tags": ["Generations"],
                "summary": "Generation history, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Generations"],
                "summary": "Start a generation run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateGenerationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Post-audit mode requires a completed audit"}
                }
            }
        },
        "/generations/latest": {
            "get": {
                "tags": ["Generations"],
                "summary": "Latest completed generation run",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No completed generation yet"}
                }
            }
        },
        "/generations/{id}/documents": {
            "post": {
                "tags": ["Generations"],
                "summary": "Attach a generated document; parent_id in the payload links a derivative to its original",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/generations/{id}/complete": {
            "post": {
                "tags": ["Generations"],
                "summary": "Complete a generation run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registry": {
            "get": {
                "tags": ["Registry"],
                "summary": "List registry entries",
                "parameters": [
                    {"name": "session_id", "in": "query", "type": "string"},
                    {"name": "source", "in": "query", "type": "string"},
                    {"name": "axis", "in": "query", "type": "string"},
                    {"name": "parent_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Registry"],
                "summary": "Remove registry entries for a session",
                "parameters": [
                    {"name": "session_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Missing session_id"}
                }
            }
        },
        "/history": {
            "delete": {
                "tags": ["Audits"],
                "summary": "Clear all history, stored documents and registry entries",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/reports/exports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/exports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referential/chapters": {
            "get": {
                "tags": ["Referential"],
                "summary": "List chapters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referential/chapters/{id}/criteria": {
            "get": {
                "tags": ["Referential"],
                "summary": "List chapter criteria",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referential/key-documents": {
            "get": {
                "tags": ["Referential"],
                "summary": "List key documents",
                "parameters": [
                    {"name": "axis", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/referential/key-documents/{id}/content": {
            "get": {
                "tags": ["Referential"],
                "summary": "Key document content sections",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "OnboardingRequest": {
            "type": "object",
            "properties": {
                "full_name": {"type": "string"},
                "company_name": {"type": "string"},
                "sector": {"type": "string"},
                "company_size": {"type": "string"},
                "main_activities": {"type": "string"}
            },
            "required": ["full_name", "company_name", "sector", "company_size", "main_activities"]
        },
        "DocumentResultRequest": {
            "type": "object",
            "properties": {
                "conformity_score": {"type": "number"},
                "axis_label": {"type": "string"},
                "gaps": {"type": "array", "items": {"type": "string"}},
                "recommendations": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["axis_label"]
        },
        "CompleteSessionRequest": {
            "type": "object",
            "properties": {
                "global_score": {"type": "number"},
                "completed_at": {"type": "string"}
            },
            "required": ["global_score"]
        },
        "CreateGenerationRequest": {
            "type": "object",
            "properties": {
                "mode": {"type": "string", "enum": ["post-audit", "from-scratch"]},
                "audit_session_id": {"type": "string"}
            },
            "required": ["mode"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "format": {"type": "string", "enum": ["pdf", "csv"]}
            },
            "required": ["session_id", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
