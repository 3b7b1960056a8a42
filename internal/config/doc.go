// Package config handles configuration loading for courier.
//
// Configuration is loaded from a YAML file with ${VAR} environment variable
// expansion and time.ParseDuration syntax for duration fields.
//
// Default file locations (in order):
//
//  1. Path from COURIER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/courier/courier.yaml
//  3. ~/.config/courier/courier.yaml
//
// Example:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	matrix:
//	  homeserver: "https://matrix.org"
//	  user_id: "@lookup:matrix.org"
//	  access_token: "${COURIER_MATRIX_TOKEN}"
//
//	bot:
//	  handle: "@a_bot:matrix.org"
//	  message_template: "{phone}"
//	  wait_after_send: "12s"
//
//	auth:
//	  token: "${COURIER_API_TOKEN}"
//
//	database:
//	  path: "/var/lib/courier/courier.db"
//
//	logging:
//	  level: "info"
//	  format: "text"
package config
