// Package router is the coordinator's Message Router.
//
// One-shot envelopes go through Dispatch or Call and always settle into a
// protocol.Response: handler errors, validation failures, store failures
// and panics all become {success:false,error:...}. Unknown types are
// answered synchronously and Dispatch reports that no reply is pending.
//
// Frames on an open connection go through HandlePush, a separate handler
// set that only logs its failures. PAGE_LOADED pushes build their reply
// with the same helper that serves REQUEST_SETTINGS.
package router
