package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Allocation API",
        "description": "Exam scheduling, system availability and reschedule engine for institutes",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Exams", "description": "Exam windows, availability and seat allocation"},
        {"name": "Reschedule", "description": "Moving students to a rescheduled sitting and back"}
    ],
    "paths": {
        "/exams": {
            "get": {
                "tags": ["Exams"],
                "summary": "List exams of an institute",
                "parameters": [
                    {"name": "instituteId", "in": "query", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}": {
            "get": {
                "tags": ["Exams"],
                "summary": "Get an exam with its system assignments",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/institutes/{id}/availability": {
            "get": {
                "tags": ["Exams"],
                "summary": "Resolve free systems for a prospective exam window",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "format": "date", "required": true},
                    {"name": "startTime", "in": "query", "type": "string", "required": true},
                    {"name": "duration", "in": "query", "type": "integer", "required": true},
                    {"name": "excludeExamId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/allocation/preview": {
            "post": {
                "tags": ["Exams"],
                "summary": "Draft a seat plan without saving it",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/AllocationPreviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not enough systems", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/schedule": {
            "put": {
                "tags": ["Exams"],
                "summary": "Commit an exam's window and system assignments",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate system, busy system or stale version", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Exam is completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/{id}/seat-plan": {
            "get": {
                "tags": ["Exams"],
                "summary": "Download the seat plan of an exam",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "Seat plan file", "schema": {"type": "file"}}
                }
            }
        },
        "/exams/{id}/reschedule": {
            "get": {
                "tags": ["Reschedule"],
                "summary": "Show the reschedule group of an exam",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/reschedule": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Move students of an exam to its rescheduled sitting",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Joined the existing sitting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Rescheduled sitting created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Student already rescheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not enough systems", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Reschedule"],
                "summary": "Edit the rescheduled sitting of an exam",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Nothing rescheduled yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Rescheduled sitting is completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exams/reschedule/undo": {
            "post": {
                "tags": ["Reschedule"],
                "summary": "Restore every rescheduled student of an exam",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UndoRescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Exam is completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ManualSeat": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "systemName": {"type": "string"}
            }
        },
        "AllocationPreviewRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string"},
                "durationMinutes": {"type": "integer"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "overrides": {"type": "array", "items": {"$ref": "#/definitions/ManualSeat"}}
            }
        },
        "SeatInput": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "systemName": {"type": "string"},
                "attended": {"type": "boolean"},
                "sectionNumber": {"type": "integer"}
            }
        },
        "SaveScheduleRequest": {
            "type": "object",
            "required": ["date", "startTime", "version"],
            "properties": {
                "date": {"type": "string", "format": "date"},
                "startTime": {"type": "string"},
                "durationMinutes": {"type": "integer"},
                "version": {"type": "integer"},
                "systemAssignments": {"type": "array", "items": {"$ref": "#/definitions/SeatInput"}}
            }
        },
        "RescheduleRequest": {
            "type": "object",
            "required": ["examId", "studentIds", "rescheduleDate", "reason"],
            "properties": {
                "examId": {"type": "string"},
                "studentIds": {"type": "array", "items": {"type": "string"}},
                "rescheduleDate": {"type": "string", "format": "date"},
                "startTime": {"type": "string"},
                "reason": {"type": "string"},
                "systems": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "UndoRescheduleRequest": {
            "type": "object",
            "required": ["examId"],
            "properties": {
                "examId": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
