// Package smbintel ingests text harvested from public web pages, turns
// candidate claims into verified, citable business-intelligence records,
// and tunes which search terms to use next.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, allabolag/).
package smbintel
