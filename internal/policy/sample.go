package policy

// SampleJSON returns a commented starter policy for `gitgate policy init`.
func SampleJSON() string {
	return `// gitgate policy
//
// Resolution for a pushing user and branch:
//   1. the first UsersInfo entry with a matching UserName is used
//   2. an exact Branch match wins over any wildcard
//   3. otherwise the first Branch ending in "*" whose prefix matches
//
// Roles: create (new branches), delete (remove branches),
//        write (push commits), admin (all three).
// Tag pushes are always rejected.
{
  "UsersInfo": [
    {
      "UserName": "admin",
      "AccessList": [
        { "Branch": "*", "Role": "admin" }
      ]
    },
    {
      "UserName": "developer",
      "AccessList": [
        { "Branch": "develop", "Role": "write" },
        { "Branch": "feature/*", "Role": "admin" },
        { "Branch": "release/*", "Role": "write" }
      ]
    }
  ]
}
`
}

// SampleYAML is SampleJSON in YAML form.
func SampleYAML() string {
	return `# gitgate policy
#
# Resolution for a pushing user and branch:
#   1. the first UsersInfo entry with a matching UserName is used
#   2. an exact Branch match wins over any wildcard
#   3. otherwise the first Branch ending in "*" whose prefix matches
#
# Roles: create (new branches), delete (remove branches),
#        write (push commits), admin (all three).
# Tag pushes are always rejected.
UsersInfo:
  - UserName: admin
    AccessList:
      - Branch: "*"
        Role: admin
  - UserName: developer
    AccessList:
      - Branch: develop
        Role: write
      - Branch: feature/*
        Role: admin
      - Branch: release/*
        Role: write
`
}
