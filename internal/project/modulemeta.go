package project

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"shaderrefl/internal/source"
)

// ImportMeta is one import of a module description.
type ImportMeta struct {
	Name string
	Span source.Span
}

// ModuleMeta is what the import graph needs to know about a description.
type ModuleMeta struct {
	Name        string       // нормализованное имя модуля: "a/b"
	Path        string       // файл описания
	Span        source.Span  // место объявления имени модуля
	Imports     []ImportMeta // нормализованные имена импортов с их спанами
	ContentHash Digest       // хеш содержимого файла (из FileSet)
	ModuleHash  Digest       // агрегированный хеш модуля с учётом зависимостей
}

// IsValidModuleIdent reports ASCII identifiers.
func IsValidModuleIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && r != '_' && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var descriptionExts = []string{".toml", ".yaml", ".yml"}

// NormalizeModuleName приводит имя модуля к каноническому виду "a/b".
// Отсекает расширение описания, переводит '\\' к '/', запрещает пустые
// сегменты и сегменты, не являющиеся идентификаторами.
func NormalizeModuleName(name string) (string, error) {
	for _, ext := range descriptionExts {
		if trimmed, ok := strings.CutSuffix(name, ext); ok {
			name = trimmed
			break
		}
	}
	name = strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/")
	if name == "" {
		return "", errors.New("empty module name")
	}
	segments := strings.Split(name, "/")
	for _, seg := range segments {
		if !IsValidModuleIdent(seg) {
			return "", fmt.Errorf("invalid module name %q: segment %q is not an identifier", name, seg)
		}
	}
	return strings.Join(segments, "/"), nil
}
