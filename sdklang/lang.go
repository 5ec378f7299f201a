/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package sdklang enumerates the SDK languages this pipeline can target
// and the per-language path and naming conventions used to map protobuf
// elements onto SDK source and test files. Adding a language means adding
// a table row, not new dispatch logic.
package sdklang

import (
	"fmt"
	"strings"
)

// Language tags a target SDK implementation language.
type Language string

const (
	Python     Language = "python"
	TypeScript Language = "typescript"
	Flutter    Language = "flutter"
	CPP        Language = "cpp"
)

// Convention holds the path and naming rules for one SDK language.
type Convention struct {
	// Marker is the repository-root file that identifies this SDK.
	Marker string

	// SourceDir and TestDir are the roots the impact mapper searches for
	// component implementations and their tests.
	SourceDir string
	TestDir   string

	// SourceExt is the implementation file extension, including the dot.
	SourceExt string

	// TestPrefix and TestSuffix shape test file names around the
	// component base name (exactly one of them is non-empty per language).
	TestPrefix string
	TestSuffix string

	// FileCase renders a proto identifier as a file base name.
	FileCase func(string) string
}

// conventions is the closed per-language table. Rules follow the layouts
// of the Viam SDK repositories each language targets.
var conventions = map[Language]Convention{
	Python: {
		Marker:     "pyproject.toml",
		SourceDir:  "src/viam/components",
		TestDir:    "tests",
		SourceExt:  ".py",
		TestPrefix: "test_",
		FileCase:   SnakeCase,
	},
	TypeScript: {
		Marker:     "package.json",
		SourceDir:  "src/components",
		TestDir:    "src/components",
		SourceExt:  ".ts",
		TestSuffix: ".test",
		FileCase:   KebabCase,
	},
	Flutter: {
		Marker:     "pubspec.yaml",
		SourceDir:  "lib/src/components",
		TestDir:    "test/unit_test/components",
		SourceExt:  ".dart",
		TestSuffix: "_test",
		FileCase:   SnakeCase,
	},
	CPP: {
		Marker:     "CMakeLists.txt",
		SourceDir:  "src/viam/sdk/components",
		TestDir:    "src/viam/sdk/tests",
		SourceExt:  ".cpp",
		TestPrefix: "test_",
		FileCase:   SnakeCase,
	},
}

// ConventionFor returns the convention table row for a language.
func ConventionFor(lang Language) (Convention, error) {
	conv, ok := conventions[lang]
	if !ok {
		return Convention{}, fmt.Errorf("unsupported SDK language: %q", lang)
	}
	return conv, nil
}

// Supported lists the languages in the table, in stable order.
func Supported() []Language {
	return []Language{Python, TypeScript, Flutter, CPP}
}

// Detect classifies a repository surface by its root marker file:
// pyproject.toml for python, pubspec.yaml for flutter, package.json for
// typescript, CMakeLists.txt for cpp.
func Detect(rootListing []string) (Language, error) {
	markers := map[string]Language{
		"pyproject.toml": Python,
		"pubspec.yaml":   Flutter,
		"package.json":   TypeScript,
		"CMakeLists.txt": CPP,
	}
	// Check in a fixed priority order so repositories carrying more than
	// one marker (flutter repos also have package-adjacent files) resolve
	// deterministically.
	for _, name := range []string{"pyproject.toml", "pubspec.yaml", "package.json", "CMakeLists.txt"} {
		for _, entry := range rootListing {
			if entry == name {
				return markers[name], nil
			}
		}
	}
	return "", fmt.Errorf("unsupported SDK layout: none of the known marker files present")
}

// SnakeCase renders a proto identifier (CamelCase or snake_case) as
// lower snake_case.
func SnakeCase(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && name[i-1] != '_' && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// KebabCase renders a proto identifier as lower kebab-case.
func KebabCase(name string) string {
	return strings.ReplaceAll(SnakeCase(name), "_", "-")
}
