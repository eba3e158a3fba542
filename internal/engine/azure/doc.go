// Package azure runs continuous recognition on the default microphone through
// the Microsoft Cognitive Services Speech SDK.
//
// The SDK links against the native Speech SDK through cgo, so the engine is
// only compiled with the "azure" build tag.
package azure
