// Package harness runs YAML scenarios against the graphcache runtime.
//
// A scenario seeds the cache, scripts transport replies by document,
// performs queries and mutations in order, and asserts on the final state.
// The dispatch journal of each run is its trace and can be compared with a
// golden file.
//
// # Scenario Format
//
//	name: create_comment
//	description: "Creating a comment appends it to its post"
//	schema: ../schemas/blog.cue
//	initial_cache:
//	  Post:
//	    "10": { id: "10", title: first, commentIds: ["1"] }
//	responses:
//	  - document: 'mutation { createComment(postId: "10", text: "hi") { id postId text } }'
//	    data: { createComment: { id: "2", postId: "10", text: hi } }
//	steps:
//	  - mutation: 'mutation { createComment(postId: "10", text: "hi") { id postId text } }'
//	    append: ["Post:postId:commentIds:id"]
//	assertions:
//	  - type: entity
//	    entity: Post:10
//	    expect: { commentIds: ["1", "2"] }
//	  - type: dispatch_count
//	    count: 2
//
// A response may instead carry errors (a GraphQL errors list, optionally
// with data) or error (a transport failure). Objects of the form
// {"__ref": "Type:ID"} in initial_cache and data stand for references.
//
// # Assertion Types
//
//   - entity: the entity is cached and its fields match expect (subset)
//   - absent: the entity is not cached
//   - last_error: the error state contains contains, or is empty when
//     contains is omitted
//   - dispatch_count: exactly count dispatches were made
//   - read: a local read of document returns exactly expect
//
// # Deterministic Testing
//
// Operation ids come from testutil.SequentialIDs, the journal is an
// in-memory SQLite database per run, and each step's dispatches complete
// before the next step starts. Identical scenarios therefore produce
// identical journals, digests included.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/create_comment.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
