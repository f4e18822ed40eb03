package core

import (
	"strings"
	"unicode"
)

const variableSuffix = "PackageVersion"

// VariableName derives the manifest variable for a package id: split on
// non-alphanumerics, upper-case the first rune of each segment, append
// "PackageVersion". An entry in overrides (case-insensitive id) wins.
func VariableName(packageID string, overrides map[string]string) string {
	for id, name := range overrides {
		if strings.EqualFold(id, packageID) && name != "" {
			return name
		}
	}
	segments := strings.FieldsFunc(packageID, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, segment := range segments {
		runes := []rune(segment)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	b.WriteString(variableSuffix)
	return b.String()
}

// VariableReference renders the MSBuild property reference for name.
func VariableReference(name string) string {
	return "$(" + name + ")"
}

// ReferencedVariable returns the property name when value is exactly one
// $(Name) reference.
func ReferencedVariable(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "$(") || !strings.HasSuffix(trimmed, ")") {
		return "", false
	}
	name := trimmed[2 : len(trimmed)-1]
	if name == "" || strings.ContainsAny(name, "$()") {
		return "", false
	}
	return name, true
}
