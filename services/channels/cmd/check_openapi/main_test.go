package main

import (
	"os"
	"strings"
	"testing"

	"quotecards/services/channels/internal/server"
)

func TestServiceOpenAPIMatchesServer(t *testing.T) {
	raw, err := os.ReadFile("../../openapi.yaml")
	if err != nil {
		t.Fatalf("read openapi: %v", err)
	}
	if err := check(raw, server.ErrorCodes()); err != nil {
		t.Fatalf("check: %v", err)
	}
}

const minimalDoc = `
paths:
  /healthz:
    get:
      responses:
        '500': {$ref: '#/components/responses/Error'}
components:
  responses:
    Error:
      content:
        application/json:
          schema: {$ref: '#/components/schemas/ErrorResponse'}
  schemas:
    ErrorResponse:
      type: object
      required: [error, code]
      properties:
        error: {type: string}
        code: {type: string, enum: [internal, rate_limited]}
        requestId: {type: string}
`

func TestCheckReportsCodeDrift(t *testing.T) {
	if err := check([]byte(minimalDoc), []string{"internal", "rate_limited"}); err != nil {
		t.Fatalf("expected minimal doc to pass: %v", err)
	}
	err := check([]byte(minimalDoc), []string{"internal", "timeout"})
	if err == nil || !strings.Contains(err.Error(), "undocumented [timeout]") || !strings.Contains(err.Error(), "never emitted [rate_limited]") {
		t.Fatalf("expected drift error, got %v", err)
	}
}

func TestCheckReportsBrokenRefs(t *testing.T) {
	doc := strings.Replace(minimalDoc, "#/components/responses/Error", "#/components/responses/Missing", 1)
	err := check([]byte(doc), []string{"internal", "rate_limited"})
	if err == nil || !strings.Contains(err.Error(), "#/components/responses/Missing") {
		t.Fatalf("expected unresolved ref error, got %v", err)
	}
}

func TestCheckRequiresStringRequestID(t *testing.T) {
	doc := strings.Replace(minimalDoc, "requestId: {type: string}", "requestId: {type: integer}", 1)
	err := check([]byte(doc), []string{"internal", "rate_limited"})
	if err == nil || !strings.Contains(err.Error(), "requestId") {
		t.Fatalf("expected requestId error, got %v", err)
	}
}
