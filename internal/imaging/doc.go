// Package imaging holds the volumetric image model and the minimal NIfTI-1
// codec the pipeline exchanges data through, plus the input-name rules the
// scanners use to decide what is ingestible.
package imaging
