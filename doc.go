// Package sif converts SIF documents between protocol versions.
//
// SIF data objects are held in one canonical tree shape, the newest one.
// Older wire shapes are produced and consumed by rendering surrogates bound
// to version ranges, so one tree can be written as SIF 1.5r1 or SIF 2.5 and
// read back from either.
//
// # Architecture
//
// The library is organized into layers:
//
//   - version: SIF version values, ranges and namespaces
//   - objects: element definitions, dictionaries and canonical trees
//   - wire: the XML token reader and writer, scalar formatting
//   - xpath: the restricted path language used for legacy shapes and queries
//   - pointer: version-specific cursors over canonical trees
//   - surrogate: legacy renderers and their registry
//   - serialization: the default codec
//   - query: path-based reads and writes
//   - messages: SIF_Message event envelopes
//   - schema: a sample dictionary with its surrogate bindings
//
// # Basic Usage
//
//	codec, err := sif.NewCodec()
//	if err != nil {
//	    return err
//	}
//	out, err := codec.Convert(data, version.SIF15r1, version.SIF25)
//
// Documents that declare their version on the root element can be converted
// with a zero source version:
//
//	out, err := codec.Convert(data, version.Version{}, version.SIF25)
package sif

// Version is the library version.
const Version = "0.1.0-dev"
