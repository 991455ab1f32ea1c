// Package registry keeps named wizard flows available to hosts.
package registry
