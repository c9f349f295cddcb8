// Package domain models the meteorological observation files published on the
// HungaroMet Open Data Portal (ODP).
//
// # Data Source
//
// ODP distributes station observations as zipped, semicolon-delimited text
// files. Every file starts with a header line naming its columns, followed by
// one line per (timestamp, station) observation. The reference layout pads
// every column to a fixed display width:
//
//	        Time;StationNumber;StationName                             ;Latitude;...;EOR
//	202501010000;        13704;Sopron                                  ; 47.6783;...;EOR
//
// Files converted by other tools drift from this layout: padding may be
// dropped, the delimiter may be a comma, tab or space, some columns may be
// filtered out, and missing values may be written as "-999", "null" or an
// empty string.
//
// # Columns
//
// The set of known columns is closed (see [Field]). Each column has a
// category used when selecting output columns:
//
//	Mandatory: Time, StationNumber. Always first and second.
//	Info:      StationName, Latitude, Longitude, Elevation.
//	Value:     measurements (r, t, ta, tn, tx, v, p, u, ...).
//	Q:         one quality flag per measurement ("Q_" prefix), usually empty.
//	EOR:       end-of-record marker, always the literal "EOR", always last.
//
// # Dialect Inference
//
// [ParseCsvFormat] reconstructs the full dialect from a header line alone,
// anchored on the "Time" title:
//
//	leading whitespace before "Time"  → aligned (padded) columns
//	character between "Time" and
//	"StationNumber"                   → delimiter
//	aligned                           → missing value "-999"
//	unaligned, whitespace delimiter   → missing value "null"
//	otherwise                         → missing value ""
//
// Rendering a [CsvFormat] yields the header again, byte for byte.
//
// # Records
//
// [RawRecord] holds a data line as trimmed strings keyed by [Field];
// [MetRecord] holds the same line with numeric columns parsed. Time stamps
// stay opaque integers (YYYYMMDDhhmm in ODP files). [RecordFilter] keeps or
// drops records by station number or name.
//
// Everything in this package is synchronous and free of I/O; values are
// immutable after construction and safe to share between goroutines.
package domain
