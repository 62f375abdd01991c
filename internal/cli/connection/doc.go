// Package connection talks to the usagemesh-server HTTP API.
package connection
