package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"quotecards/services/channels/internal/server"
)

type openAPIDoc struct {
	Paths      map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas   map[string]schema    `yaml:"schemas"`
		Responses map[string]yaml.Node `yaml:"responses"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
	Enum       []string          `yaml:"enum"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		exitErr(fmt.Errorf("read %s: %w", os.Args[1], err))
	}
	if err := check(raw, server.ErrorCodes()); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

// check validates the error envelope against the codes the server can emit and verifies every
// local $ref resolves.
func check(raw []byte, codes []string) error {
	var doc openAPIDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse openapi: %w", err)
	}
	errSchema, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errSchema); err != nil {
		return err
	}
	if err := ensureSameCodes(errSchema.Properties["code"].Enum, codes); err != nil {
		return err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("parse openapi: %w", err)
	}
	var broken []string
	for _, ref := range collectRefs(&root) {
		if !resolves(doc, ref) {
			broken = append(broken, ref)
		}
	}
	if len(broken) > 0 {
		sort.Strings(broken)
		return fmt.Errorf("unresolved $ref: %s", strings.Join(dedupe(broken), ", "))
	}
	if len(doc.Paths) == 0 {
		return errors.New("paths missing")
	}
	return nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	for _, field := range []string{"error", "code", "requestId"} {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	return nil
}

func ensureSameCodes(documented, emitted []string) error {
	doc := makeSet(documented)
	code := makeSet(emitted)
	var undocumented, stale []string
	for c := range code {
		if !doc[c] {
			undocumented = append(undocumented, c)
		}
	}
	for c := range doc {
		if !code[c] {
			stale = append(stale, c)
		}
	}
	sort.Strings(undocumented)
	sort.Strings(stale)
	switch {
	case len(undocumented) > 0 && len(stale) > 0:
		return fmt.Errorf("error codes out of sync: undocumented %v, never emitted %v", undocumented, stale)
	case len(undocumented) > 0:
		return fmt.Errorf("error codes missing from ErrorResponse.code enum: %v", undocumented)
	case len(stale) > 0:
		return fmt.Errorf("ErrorResponse.code enum lists codes the server never emits: %v", stale)
	}
	return nil
}

func collectRefs(n *yaml.Node) []string {
	var out []string
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "$ref" && n.Content[i+1].Kind == yaml.ScalarNode {
				out = append(out, n.Content[i+1].Value)
			}
		}
	}
	for _, c := range n.Content {
		out = append(out, collectRefs(c)...)
	}
	return out
}

func resolves(doc openAPIDoc, ref string) bool {
	if name, ok := strings.CutPrefix(ref, "#/components/schemas/"); ok {
		_, found := doc.Components.Schemas[name]
		return found
	}
	if name, ok := strings.CutPrefix(ref, "#/components/responses/"); ok {
		_, found := doc.Components.Responses[name]
		return found
	}
	return false
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		out[strings.TrimSpace(item)] = true
	}
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "OpenAPI consistency check failed: %v\n", err)
	os.Exit(1)
}
