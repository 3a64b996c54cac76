package util

import (
	"runtime"
	"strings"
)

func GetAppName() string {
	return "AutoSign"
}

// SigningURL builds the public link a signer opens, e.g. https://sign.example.com/sign/<token>.
func SigningURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/sign/" + token
}

func DetermineWorkers(jobCount int) int {
	if jobCount <= 0 {
		return max(runtime.GOMAXPROCS(0), 1)
	}

	return min(max(runtime.GOMAXPROCS(0)*2, 1), jobCount)
}
