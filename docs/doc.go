// Package docs provides the OpenAPI documentation served at /swagger.json.
//
// BibTeX ID Fixer API
//
//	@title			BibTeX ID Fixer API
//	@version		1.0
//	@description	Repairs missing, blank and whitespace citation keys in BibTeX files.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/bibfix
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

import _ "embed"

//go:generate swag init -g ../cmd/bibfix/serve.go -o ./swagger --outputTypes json --parseInternal

// SwaggerJSON is the generated OpenAPI 2.0 document.
//
//go:embed swagger/swagger.json
var SwaggerJSON []byte
