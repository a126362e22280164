package changes

import (
	"strings"

	"github.com/dgerlanc/hookgate/internal/project"
)

// Dependency manifests and their ecosystems.
var manifests = map[string]string{
	"package.json":     "npm",
	"go.mod":           "go",
	"requirements.txt": "pip",
	"Cargo.toml":       "cargo",
	"pyproject.toml":   "pyproject",
}

// npmMetaKeys are package.json keys that look like "name": "value" lines but
// are not dependencies.
var npmMetaKeys = map[string]bool{
	"name": true, "version": true, "description": true, "main": true,
	"module": true, "types": true, "license": true, "private": true,
	"type": true, "author": true, "homepage": true, "repository": true,
	"scripts": true, "dependencies": true, "devDependencies": true,
	"peerDependencies": true, "optionalDependencies": true, "engines": true,
	"workspaces": true, "files": true, "bin": true, "keywords": true,
}

var cargoMetaKeys = map[string]bool{
	"name": true, "version": true, "edition": true, "authors": true,
	"description": true, "license": true, "readme": true, "repository": true,
	"rust-version": true, "publish": true, "workspace": true,
}

// isManifest reports whether path is a dependency manifest.
func isManifest(path string) bool {
	_, ok := manifests[baseName(path)]
	return ok
}

// newDependencies extracts dependency names from lines added to a manifest.
func newDependencies(path string, added []string) []string {
	eco, ok := manifests[baseName(path)]
	if !ok {
		return nil
	}
	var deps []string
	for _, line := range added {
		if dep := parseDepLine(line, eco); dep != "" {
			deps = append(deps, dep)
		}
	}
	return deps
}

func parseDepLine(line, eco string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	switch eco {
	case "go":
		// require github.com/foo/bar v1.2.3, or a line inside a require block
		if strings.HasPrefix(line, "//") {
			return ""
		}
		parts := strings.Fields(line)
		if parts[0] == "require" && len(parts) >= 3 {
			return parts[1]
		}
		if len(parts) >= 2 && strings.Contains(parts[0], "/") && strings.HasPrefix(parts[1], "v") {
			return parts[0]
		}

	case "npm":
		// "dep-name": "^1.0.0",
		line = strings.TrimSuffix(line, ",")
		if !strings.HasPrefix(line, `"`) || !strings.Contains(line, ":") {
			return ""
		}
		parts := strings.SplitN(line, ":", 2)
		name := strings.Trim(parts[0], `" `)
		value := strings.TrimSpace(parts[1])
		if name == "" || npmMetaKeys[name] || strings.HasPrefix(name, "@types/") || !strings.HasPrefix(value, `"`) {
			return ""
		}
		return name

	case "cargo":
		// dep-name = "1.0" or dep-name = { version = "1.0" }
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "#") || !strings.Contains(line, "=") {
			return ""
		}
		name := strings.TrimSpace(strings.SplitN(line, "=", 2)[0])
		if name == "" || cargoMetaKeys[name] || strings.Contains(name, ".") {
			return ""
		}
		return name

	case "pip":
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			return ""
		}
		return project.RequirementName(line)

	case "pyproject":
		// list entries in [project].dependencies: "fastapi>=0.110",
		line = strings.TrimSuffix(line, ",")
		if !strings.HasPrefix(line, `"`) && !strings.HasPrefix(line, `'`) {
			return ""
		}
		return project.RequirementName(strings.Trim(line, `"'`))
	}
	return ""
}

func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
