// Package handler provides the HTTP request handlers for usagemesh.
//
// Every JSON response uses the Response envelope. Errors carry a
// UM-<AREA>-<NNNN> code in both the body and the X-Error-Code header.
package handler
