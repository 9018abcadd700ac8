package utils

import "time"

func BoolPtr(b bool) *bool {
	return &b
}

func Int64Ptr(i int64) *int64 {
	return &i
}

func StringPtr(s string) *string {
	return &s
}

func NowPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}

// GetOrDefault dereferences ptr, falling back to def when nil
func GetOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}
