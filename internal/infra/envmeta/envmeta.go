package envmeta

import (
	"os"
	"os/exec"
	"strings"
)

// Metadata captures the CI context of a run. Entries is the flat mapping
// embedded in receipts; ci/runner are the normalized headline fields.
type Metadata struct {
	CI      string
	Runner  string
	Entries map[string]string
}

// Collect probes the environment for the CI vendors the receipts care
// about and normalizes the result under stable keys (ci, ci_url,
// git_commit, git_ref, runner, terraform_version). Adapters are ordered;
// the first vendor detected wins.
func Collect() Metadata {
	meta := Metadata{Entries: map[string]string{}}

	switch {
	case envVar("GITHUB_ACTIONS") == "true" || envVar("GITHUB_ACTIONS") == "1":
		meta.CI = "github_actions"
		insert(meta.Entries, "github_repository", envVar("GITHUB_REPOSITORY"))
		insert(meta.Entries, "github_sha", envVar("GITHUB_SHA"))
		insert(meta.Entries, "github_ref", envVar("GITHUB_REF"))
		insert(meta.Entries, "github_run_id", envVar("GITHUB_RUN_ID"))
		insert(meta.Entries, "github_run_attempt", envVar("GITHUB_RUN_ATTEMPT"))
		if repo, run := meta.Entries["github_repository"], meta.Entries["github_run_id"]; repo != "" && run != "" {
			base := envVar("GITHUB_SERVER_URL")
			if base == "" {
				base = "https://github.com"
			}
			url := strings.TrimSuffix(base, "/") + "/" + repo + "/actions/runs/" + run
			meta.Entries["workflow_url"] = url
			meta.Entries["ci_url"] = url
		}
		if runner := envVar("RUNNER_NAME"); runner != "" {
			meta.Runner = runner
			meta.Entries["github_runner_name"] = runner
		}
	case envVar("GITLAB_CI") != "":
		meta.CI = "gitlab_ci"
		insert(meta.Entries, "gitlab_project", envVar("CI_PROJECT_PATH"))
		insert(meta.Entries, "gitlab_sha", envVar("CI_COMMIT_SHA"))
		insert(meta.Entries, "gitlab_ref", envVar("CI_COMMIT_REF_NAME"))
		insert(meta.Entries, "pipeline_url", envVar("CI_PIPELINE_URL"))
		if u := meta.Entries["pipeline_url"]; u != "" {
			meta.Entries["ci_url"] = u
		}
	case envVar("CIRCLECI") != "":
		meta.CI = "circleci"
		insert(meta.Entries, "circle_project", envVar("CIRCLE_PROJECT_REPONAME"))
		insert(meta.Entries, "circle_username", envVar("CIRCLE_PROJECT_USERNAME"))
		insert(meta.Entries, "circle_sha", envVar("CIRCLE_SHA1"))
		insert(meta.Entries, "circle_branch", envVar("CIRCLE_BRANCH"))
		insert(meta.Entries, "build_url", envVar("CIRCLE_BUILD_URL"))
		if u := meta.Entries["build_url"]; u != "" {
			meta.Entries["ci_url"] = u
		}
	case envVar("BUILDKITE") != "":
		meta.CI = "buildkite"
		insert(meta.Entries, "buildkite_org", envVar("BUILDKITE_ORGANIZATION_SLUG"))
		insert(meta.Entries, "buildkite_pipeline", envVar("BUILDKITE_PIPELINE_SLUG"))
		insert(meta.Entries, "buildkite_build_number", envVar("BUILDKITE_BUILD_NUMBER"))
		insert(meta.Entries, "buildkite_commit", envVar("BUILDKITE_COMMIT"))
		insert(meta.Entries, "build_url", envVar("BUILDKITE_BUILD_URL"))
		if u := meta.Entries["build_url"]; u != "" {
			meta.Entries["ci_url"] = u
		}
	case envVar("JENKINS_URL") != "":
		meta.CI = "jenkins"
		insert(meta.Entries, "jenkins_url", envVar("JENKINS_URL"))
		insert(meta.Entries, "jenkins_job", envVar("JOB_NAME"))
		insert(meta.Entries, "jenkins_build_number", envVar("BUILD_NUMBER"))
		insert(meta.Entries, "jenkins_build_tag", envVar("BUILD_TAG"))
		if u := envVar("BUILD_URL"); u != "" {
			meta.Entries["ci_url"] = u
			meta.Entries["build_url"] = u
		}
	case envVar("AZURE_HTTP_USER_AGENT") != "":
		meta.CI = "azure_pipelines"
		insert(meta.Entries, "azure_definition", envVar("BUILD_DEFINITIONNAME"))
		insert(meta.Entries, "azure_build_id", envVar("BUILD_BUILDID"))
		insert(meta.Entries, "azure_repo", envVar("BUILD_REPOSITORY_NAME"))
		insert(meta.Entries, "azure_source_branch", envVar("BUILD_SOURCEBRANCH"))
		insert(meta.Entries, "build_url", envVar("BUILD_BUILDURI"))
		if u := meta.Entries["build_url"]; u != "" {
			meta.Entries["ci_url"] = u
		}
	}

	if meta.CI != "" {
		meta.Entries["ci"] = meta.CI
	}

	runner := envVar("HOSTNAME")
	if runner == "" {
		runner = envVar("COMPUTERNAME")
	}
	if meta.Runner == "" {
		meta.Runner = runner
	}
	if runner != "" {
		meta.Entries["runner"] = runner
	}

	if commit := firstOf(envVar("GIT_COMMIT"),
		meta.Entries["github_sha"], meta.Entries["gitlab_sha"],
		meta.Entries["circle_sha"], meta.Entries["buildkite_commit"]); commit != "" {
		meta.Entries["git_commit"] = commit
	}
	if ref := firstOf(envVar("GIT_REF"),
		meta.Entries["github_ref"], meta.Entries["gitlab_ref"],
		meta.Entries["circle_branch"], meta.Entries["azure_source_branch"]); ref != "" {
		meta.Entries["git_ref"] = ref
	}

	if tfv := TerraformVersion(); tfv != "" {
		meta.Entries["terraform_version"] = tfv
	}

	return meta
}

// TerraformVersion returns the normalized terraform version: the
// VM_TF_VERSION override when set (bypasses invoking the tool), else the
// parsed output of `terraform version`, else empty.
func TerraformVersion() string {
	if v := envVar("VM_TF_VERSION"); v != "" {
		return v
	}
	out, err := exec.Command("terraform", "version").Output()
	if err != nil {
		return ""
	}
	return parseTerraformVersion(string(out))
}

// parseTerraformVersion tolerates noisy multi-line output and preserves
// prerelease/build-metadata suffixes ("1.9.2-beta2", "1.7.0+ent").
func parseTerraformVersion(s string) string {
	line := strings.TrimSpace(s)
	for _, l := range strings.Split(s, "\n") {
		if strings.Contains(strings.ToLower(l), "terraform v") {
			line = l
			break
		}
	}

	start := -1
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == 'v' && i+1 < len(line) && isDigit(line[i+1]) {
			start = i + 1
			break
		}
		if isDigit(c) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := start
	for end < len(line) {
		c := line[end]
		if isDigit(c) || c == '.' || c == '-' || c == '+' || isAlnum(c) {
			end++
			continue
		}
		break
	}
	return line[start:end]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func envVar(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func insert(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
