package hdf5

import (
	"fmt"
	"strings"
)

// ParseAttrPath splits an attribute address of the form /group/object@name.
// "/@name" addresses an attribute on the root group.
func ParseAttrPath(p string) (objectPath, attrName string, err error) {
	at := strings.LastIndex(p, "@")
	if at == -1 {
		return "", "", fmt.Errorf("attribute path %q has no '@': %w", p, ErrInvalidPath)
	}
	objectPath, attrName = CleanPath(p[:at]), p[at+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("attribute path %q has an empty name: %w", p, ErrInvalidPath)
	}
	return objectPath, attrName, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// CleanPath returns p with exactly one leading slash and no trailing slash.
func CleanPath(p string) string {
	p = strings.Trim(p, "/")
	return "/" + p
}
