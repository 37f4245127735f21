// Package testutil provides shared test builders: scripted agents with
// deterministic observations and failure injection, plus DAG and intent
// fixtures used across package tests.
package testutil
