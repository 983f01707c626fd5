// Package harness runs end-to-end head scenarios against the real engine.
//
// A scenario pushes entries (inline or from head documents), optionally
// patches and disposes them, resolves one pass and checks the resulting tag
// list with assertions and golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: title_template
//	description: "Title template expands with site params"
//	render: server                 # default server
//	documents:                     # relative to the scenario file
//	  - ../documents/site.yaml
//	entries:
//	  - name: home                 # optional, for steps
//	    input: { title: Home }
//	    mode: all
//	steps:
//	  - patch: home
//	    input: { title: Home v2 }
//	  - dispose: home
//	assertions:
//	  - type: title
//	    expect: "Home | Acme"
//	  - type: tag_present
//	    kind: meta
//	    props: { name: description }
//
// # Assertion Types
//
//   - title: the title tag's text equals expect
//   - tag_present: a tag of kind whose props include props (and whose
//     content equals content, when given) exists
//   - tag_absent: no such tag exists
//   - tag_count: exactly count tags of kind exist
//   - tag_order: the dedupe keys appear in this relative order
//   - stable_hash: resolving again yields the same pass hash
//   - no_diagnostics: the pass recovered from no failures
//
// # Deterministic Testing
//
// Every pass id is the scenario's pass_id (default "test-pass"), logs are
// discarded, and golden output excludes content hashes, so a golden file only
// changes when the resolved tags do.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/title_template.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
