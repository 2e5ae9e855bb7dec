package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Edu Collective API",
        "description": "Role-governed organization engine: admission proposals, paid course catalog, treasury-backed payouts.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type \"Bearer\" followed by a space and the identity token."
        }
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Governance", "description": "Admission proposals and the member registry"},
        {"name": "Courses", "description": "Paid course catalog"},
        {"name": "Enrollment", "description": "Application, committee vote, payment, completion"},
        {"name": "Ratings", "description": "Course ratings and rating-weighted bonus distribution"},
        {"name": "Treasury", "description": "Balance, journal, payouts"},
        {"name": "Admin", "description": "Owner-only settings and rescue (X-Admin-Key)"},
        {"name": "Statements", "description": "Async treasury statement exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "security": [],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "security": [],
                "summary": "Readiness check (database and redis)",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/overview": {
            "get": {
                "tags": ["Governance"],
                "summary": "Organization snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/proposals": {
            "get": {
                "tags": ["Governance"],
                "summary": "List admission proposals",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["open", "closed", "executed"]},
                    {"name": "role", "in": "query", "type": "string", "enum": ["BOARD", "TEACHER", "STUDENT"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Governance"],
                "summary": "Open an admission proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Candidate already has an open proposal"}
                }
            }
        },
        "/api/v1/proposals/{id}": {
            "get": {
                "tags": ["Governance"],
                "summary": "Get a proposal with its votes",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/proposals/{id}/votes": {
            "post": {
                "tags": ["Governance"],
                "summary": "Vote on an open proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already voted"},
                    "422": {"description": "Voting window closed"}
                }
            }
        },
        "/api/v1/proposals/{id}/execute": {
            "post": {
                "tags": ["Governance"],
                "summary": "Execute a closed proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Voting window still open"}
                }
            }
        },
        "/api/v1/members": {
            "get": {
                "tags": ["Governance"],
                "summary": "List members",
                "parameters": [
                    {"name": "role", "in": "query", "type": "string", "enum": ["BOARD", "TEACHER", "STUDENT"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/members/{account}": {
            "get": {
                "tags": ["Governance"],
                "summary": "Get a member's roles",
                "parameters": [
                    {"name": "account", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not a member"}
                }
            }
        },
        "/api/v1/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "parameters": [
                    {"name": "teacher", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "includeRemoved", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course (teacher only)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Shares must sum to 10000 basis points"}
                }
            }
        },
        "/api/v1/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get a course with its teachers",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Courses"],
                "summary": "Remove a course from the catalog (listed teacher or board)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/courses/{id}/applications": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Apply for a course (student only)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already applied or enrolled"}
                }
            }
        },
        "/api/v1/courses/{id}/applications/{student}": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "Get an application with committee votes",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "student", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{id}/applications/{student}/votes": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Committee vote on an application (course teacher only)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "student", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{id}/enrollment/confirm": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Pay for an approved application and enroll",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Application not approved"}
                }
            }
        },
        "/api/v1/courses/{id}/students/{student}/complete": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Mark a student's course as completed (course teacher only)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "student", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/enrollments": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "courseId", "in": "query", "type": "integer"},
                    {"name": "student", "in": "query", "type": "string"},
                    {"name": "enrolled", "in": "query", "type": "boolean"},
                    {"name": "completed", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{id}/ratings": {
            "get": {
                "tags": ["Ratings"],
                "summary": "List the caller's ratings for a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Ratings"],
                "summary": "Rate a course teacher (enrolled student only)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Teacher already rated for this course"}
                }
            }
        },
        "/api/v1/teachers/{account}/rating": {
            "get": {
                "tags": ["Ratings"],
                "summary": "Get a teacher's aggregate rating",
                "parameters": [
                    {"name": "account", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{id}/bonus": {
            "post": {
                "tags": ["Ratings"],
                "summary": "Distribute a rating-weighted bonus to course teachers (board only)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BonusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "No rated teachers or insufficient funds"}
                }
            }
        },
        "/api/v1/treasury": {
            "get": {
                "tags": ["Treasury"],
                "summary": "Treasury balance overview",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/treasury/entries": {
            "get": {
                "tags": ["Treasury"],
                "summary": "List treasury journal entries",
                "parameters": [
                    {"name": "direction", "in": "query", "type": "string", "enum": ["IN", "OUT"]},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "integer"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/treasury/payouts": {
            "post": {
                "tags": ["Treasury"],
                "summary": "Pay out treasury funds (board only)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PayoutRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient funds"}
                }
            }
        },
        "/api/v1/admin/settings": {
            "get": {
                "tags": ["Admin"],
                "summary": "List organization settings (owner only)",
                "parameters": [
                    {"name": "X-Admin-Key", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/settings/proposal-duration": {
            "put": {
                "tags": ["Admin"],
                "summary": "Set the proposal voting window (owner only)",
                "parameters": [
                    {"name": "X-Admin-Key", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProposalDurationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/rescue": {
            "post": {
                "tags": ["Admin"],
                "summary": "Rescue stray assets out of the treasury (owner only)",
                "parameters": [
                    {"name": "X-Admin-Key", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescueRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/statements": {
            "post": {
                "tags": ["Statements"],
                "summary": "Queue a statement export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StatementRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/statements/{id}": {
            "get": {
                "tags": ["Statements"],
                "summary": "Get statement job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/statements/download/{token}": {
            "get": {
                "security": [],
                "tags": ["Statements"],
                "summary": "Download a finished statement by signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "produces": ["text/csv", "application/pdf"],
                "responses": {
                    "200": {"description": "File"},
                    "410": {"description": "Link expired"}
                }
            }
        }
    },
    "definitions": {
        "CreateProposalRequest": {
            "type": "object",
            "properties": {
                "candidate": {"type": "string"},
                "role": {"type": "string", "enum": ["BOARD", "TEACHER", "STUDENT"]}
            },
            "required": ["candidate", "role"]
        },
        "VoteRequest": {
            "type": "object",
            "properties": {
                "support": {"type": "boolean"}
            },
            "required": ["support"]
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "price": {"type": "integer"},
                "teachers": {"type": "array", "items": {"type": "string"}},
                "sharesBp": {
                    "type": "array",
                    "items": {"type": "integer"},
                    "description": "Revenue shares in basis points, parallel to teachers; must sum to 10000."
                }
            },
            "required": ["title", "price", "teachers", "sharesBp"]
        },
        "RateRequest": {
            "type": "object",
            "properties": {
                "teacher": {"type": "string"},
                "value": {"type": "integer", "minimum": 1, "maximum": 5}
            },
            "required": ["teacher", "value"]
        },
        "BonusRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "integer"}
            },
            "required": ["amount"]
        },
        "PayoutRequest": {
            "type": "object",
            "properties": {
                "to": {"type": "string"},
                "amount": {"type": "integer"}
            },
            "required": ["to", "amount"]
        },
        "ProposalDurationRequest": {
            "type": "object",
            "properties": {
                "seconds": {"type": "integer", "minimum": 1}
            },
            "required": ["seconds"]
        },
        "RescueRequest": {
            "type": "object",
            "properties": {
                "asset": {"type": "string"},
                "to": {"type": "string"},
                "amount": {"type": "integer"}
            },
            "required": ["asset", "to", "amount"]
        },
        "StatementRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "courseId": {"type": "integer"},
                "from": {"type": "string", "format": "date-time"},
                "to": {"type": "string", "format": "date-time"}
            },
            "required": ["format"]
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
