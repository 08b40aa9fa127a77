// Package pipeline reads the Jarvisfile.
//
// A Jarvisfile is a YAML sequence of mappings, each naming a stage and the
// shell script it runs:
//
//	- stage: build
//	  script: make
//	- stage: test
//	  script: |
//	    make test
//	    make lint
//
// The document is validated against an embedded JSON schema before it is
// decoded. Entries without a stage (missing or null) are skipped, which
// lets YAML anchors and disabled stages live in the same file. Stage order
// is the file order.
package pipeline
