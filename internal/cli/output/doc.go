// Package output renders usagemesh-cli results as tables, JSON or YAML.
package output
