// Package apiresponses provides the standardized HTTP response helpers
// (error, not-found, unauthorized, etc.) shared by all API controllers.
package apiresponses
