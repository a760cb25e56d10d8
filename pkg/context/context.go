package context

import (
	"context"
	"strconv"
)

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	UserIDKey    = ContextKey("X-User-Id")
	RunIDKey     = ContextKey("X-Run-Id")
	CDCKeyKey    = ContextKey("X-Cdc-Key")
	StageKey     = ContextKey("X-Stage")
)

func setString(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func getString(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return setString(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return setString(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return getString(ctx, UserIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return setString(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return getString(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return setString(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return getString(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return setString(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return getString(ctx, RemoteIPKey)
}

// SetRunID tags ctx with the external run identifier of a pass.
func SetRunID(ctx context.Context, runID string) context.Context {
	return setString(ctx, RunIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	return getString(ctx, RunIDKey)
}

// SetStage tags ctx with the stage a pass is working in.
func SetStage(ctx context.Context, stage string) context.Context {
	return setString(ctx, StageKey, stage)
}

func GetStage(ctx context.Context) string {
	return getString(ctx, StageKey)
}

// SetCDCKey tags ctx with the CDC key of a pass.
func SetCDCKey(ctx context.Context, cdcKey int64) context.Context {
	return context.WithValue(ctx, CDCKeyKey, cdcKey)
}

// GetCDCKey returns the CDC key carried by ctx and whether one was set.
func GetCDCKey(ctx context.Context) (int64, bool) {
	value, ok := ctx.Value(CDCKeyKey).(int64)
	return value, ok
}

// Fields returns the pass and request values carried by ctx as log fields.
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for key, value := range map[string]string{
		"request_id": GetRequestID(ctx),
		"run_id":     GetRunID(ctx),
		"stage":      GetStage(ctx),
	} {
		if value != "" {
			fields[key] = value
		}
	}
	if cdcKey, ok := GetCDCKey(ctx); ok {
		fields["cdc_key"] = strconv.FormatInt(cdcKey, 10)
	}
	return fields
}
