package app

import (
	"log"
	"mime"
)

// Some minimal container images ship without /etc/mime.types, which would make
// the embedded stylesheet serve as text/plain.
func init() {
	if mime.TypeByExtension(".css") != "" {
		return
	}
	if err := mime.AddExtensionType(".css", "text/css; charset=utf-8"); err != nil {
		log.Printf("app: failed to register MIME type for .css: %v", err)
	}
}
