package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Example output for "ex.txt": "21313123123_ex.txt"
func AddUniquePrefixToFileName(fileName string) string {
	uniquePrefix := fmt.Sprintf("%d", time.Now().UnixNano())
	return fmt.Sprintf("%s_%s", uniquePrefix, fileName)
}

func GetDocumentDirectoryPath(ownerID string) string {
	return fmt.Sprintf("documents/%s", ownerID)
}

// ToDocumentObjectName returns a unique object key under the owner's directory.
// Object keys always use forward slashes.
func ToDocumentObjectName(ownerID string, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document.pdf"
	}

	return path.Join(GetDocumentDirectoryPath(ownerID), AddUniquePrefixToFileName(base))
}

// SHA256Hex returns the lowercase hex digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
