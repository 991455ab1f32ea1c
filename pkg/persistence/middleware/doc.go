// Package middleware decorates a ports.StateStore with at-rest protections:
// AES-GCM envelopes with key rotation and PII masking of step fields.
package middleware
