package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Registrar API",
        "description": "Student onboarding and academic fee lifecycle pipeline",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and credential management"},
        {"name": "Calendar", "description": "Academic year and term registry"},
        {"name": "Curriculum", "description": "Subject resolution and listings"},
        {"name": "Registration", "description": "Student onboarding pipeline"},
        {"name": "Fees", "description": "Fee structures and bulk assignment"},
        {"name": "Invoices", "description": "Invoice generation and payments"},
        {"name": "Clearance", "description": "Clearance approval workflow"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "responses": {
                    "204": {"description": "Password changed"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user claims",
                "responses": {
                    "200": {"description": "Claims"}
                }
            }
        },
        "/calendar/active": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Active year and term",
                "responses": {
                    "200": {"description": "Active context"},
                    "404": {"description": "No active year"}
                }
            }
        },
        "/calendar/years": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List academic years",
                "responses": {"200": {"description": "Years"}}
            },
            "post": {
                "tags": ["Calendar"],
                "summary": "Create academic year",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/calendar/years/{id}": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Get academic year",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Year"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/calendar/years/{id}/activate": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Activate academic year",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Activated"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/calendar/years/{id}/terms": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List terms of a year",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "Terms"}}
            }
        },
        "/calendar/terms": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Create term",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/calendar/terms/{id}/activate": {
            "post": {
                "tags": ["Calendar"],
                "summary": "Activate term",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Activated"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/curriculum": {
            "get": {
                "tags": ["Curriculum"],
                "summary": "List curriculum subjects",
                "parameters": [
                    {"name": "level", "in": "query", "required": true, "type": "string", "enum": ["junior", "senior"]}
                ],
                "responses": {"200": {"description": "Subjects"}}
            }
        },
        "/curriculum/resolve": {
            "get": {
                "tags": ["Curriculum"],
                "summary": "Resolve subjects for a grade level",
                "parameters": [
                    {"name": "grade_level", "in": "query", "required": true, "type": "integer"},
                    {"name": "stream", "in": "query", "required": false, "type": "string"}
                ],
                "responses": {"200": {"description": "Resolved subjects"}}
            }
        },
        "/students": {
            "get": {
                "tags": ["Registration"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "student_type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "Students with pagination"}}
            }
        },
        "/students/register": {
            "post": {
                "tags": ["Registration"],
                "summary": "Register a student",
                "responses": {
                    "201": {"description": "Registered, with per-step outcomes"},
                    "409": {"description": "Duplicate student number"}
                }
            }
        },
        "/students/{id}/subjects": {
            "get": {
                "tags": ["Registration"],
                "summary": "List a student's subject enrollments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Subject enrollments for the active year"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{id}/status": {
            "get": {
                "tags": ["Registration"],
                "summary": "Student onboarding status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Enrollment, subjects, fee and invoice state"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/students/{id}/sync-subjects": {
            "post": {
                "tags": ["Registration"],
                "summary": "Re-sync subject enrollments",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "Enrollment count"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Registration"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "academic_year_id", "in": "query", "type": "string"},
                    {"name": "class_id", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "Enrollments for the year"}}
            }
        },
        "/enrollments/{id}/status": {
            "patch": {
                "tags": ["Registration"],
                "summary": "Update enrollment status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Updated"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/fees/structures": {
            "get": {
                "tags": ["Fees"],
                "summary": "List fee structures",
                "responses": {"200": {"description": "Structures"}}
            },
            "post": {
                "tags": ["Fees"],
                "summary": "Create fee structure",
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Invalid payload"}
                }
            }
        },
        "/fees/assignments/preview": {
            "get": {
                "tags": ["Fees"],
                "summary": "Preview bulk fee assignment",
                "responses": {"200": {"description": "Preview"}}
            }
        },
        "/fees/assignments/commit": {
            "post": {
                "tags": ["Fees"],
                "summary": "Commit bulk fee assignment",
                "responses": {"200": {"description": "Assigned and skipped counts"}}
            }
        },
        "/invoices": {
            "get": {
                "tags": ["Invoices"],
                "summary": "List invoices",
                "responses": {"200": {"description": "Invoices"}}
            }
        },
        "/invoices/preview": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Preview invoice generation",
                "responses": {"200": {"description": "Preview"}}
            }
        },
        "/invoices/commit": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Generate invoices",
                "responses": {"200": {"description": "Generated and skipped counts"}}
            }
        },
        "/invoices/{id}": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Get invoice with items",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Invoice"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/invoices/{id}/payments": {
            "post": {
                "tags": ["Invoices"],
                "summary": "Record a payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Updated invoice"},
                    "400": {"description": "Invalid amount"}
                }
            }
        },
        "/clearance/types": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance types",
                "responses": {"200": {"description": "Types"}}
            }
        },
        "/clearance/requests": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Request a clearance",
                "responses": {
                    "201": {"description": "Pending request created"},
                    "409": {"description": "Pending request already exists"}
                }
            }
        },
        "/clearance/requests/pending": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List pending requests with eligibility",
                "responses": {"200": {"description": "Pending requests"}}
            }
        },
        "/clearance/requests/{id}/decision": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Decide a clearance request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Decided request"},
                    "400": {"description": "Rejection without reason"},
                    "409": {"description": "Already decided"}
                }
            }
        }
    },
    "definitions": {
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
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
