// Package types defines the project specification record and the chunk types
// shared by every stage of the retrieval pipeline.
//
// ProjectData is decoded once at the boundary with DecodeProjectData. Loose
// input shapes are normalized there: identifiers may be strings or numbers,
// free-text fields may be lists, and business rule categories may be nested
// under "config". Code downstream only has to ask whether a field is empty.
//
//	data, err := types.DecodeProjectData(raw)
//	if err != nil {
//	    return err
//	}
//	name := data.Project.Name.Or("N/A")
//
// Chunk is the unit of retrieval: a non-empty text plus metadata naming its
// source facet and, for module details, the module it describes.
package types
