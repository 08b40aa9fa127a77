// Package executor runs a pipeline's stages in order.
//
// Stages run one after another through a [Runner], normally a container
// session. The first stage that exits non-zero stops the pipeline and its
// exit code becomes the result, carried by a [StageError]. Stages after it
// never run.
package executor
