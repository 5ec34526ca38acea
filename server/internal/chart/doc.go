// Package chart renders the optimization score trend over the dataset.
package chart
