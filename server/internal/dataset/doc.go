// Package dataset loads the batch table from CSV or XLSX files and writes the
// scored table back out.
//
// Load(path, opts) reads the file, checks that Batch_ID, Yield,
// Energy_Consumption, Quality_Score and Pressure are present, parses the
// numeric columns and hands the rows to compute.Score. Any failure is fatal:
// there is no partial dataset.
//
// WriteCSV and WriteXLSX export the input columns in file order followed by
// the four derived score columns.
package dataset
