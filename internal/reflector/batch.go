package reflector

import (
	"path/filepath"
	"sort"
	"strings"
)

// minClusterFrequency is the minimum number of occurrences a pattern
// signature must have to be emitted as a batch-mode cluster insight
// (spec.md Section 4.4: "emit a cluster insight when frequency >= 2").
const minClusterFrequency = 2

type cluster struct {
	tool     Tool
	pattern  string
	filePat  string
	beadIDs  map[string]bool
	files    map[string]bool
	messages []string
	allError bool
}

func clusterKey(tool Tool, pattern, filePattern string) string {
	return string(tool) + "::" + pattern + "::" + filePattern
}

// filePattern generalizes a file path down to its extension, so errors
// in structurally similar files (different paths, same language) can
// cluster together — without this generalization, "filePattern" in the
// cluster key as spec.md Section 4.4 states it would make every
// differently-pathed occurrence of the same error a singleton cluster.
func filePattern(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == "" {
		return "none"
	}
	return ext
}

// Batch builds clusters across N traces keyed by pattern signature
// (errorPattern, toolPattern, filePattern) and emits one insight per
// cluster whose frequency is >= 2 (spec.md Section 4.4, "Batch mode").
func (r *Reflector) Batch(traces []ExecutionTrace) []Insight {
	clusters := r.buildClusters(traces)
	return r.clustersToInsights(clusters, 1.0, []string{"recurring-error"})
}

func (r *Reflector) buildClusters(traces []ExecutionTrace) map[string]*cluster {
	clusters := map[string]*cluster{}

	for _, trace := range traces {
		for _, exec := range trace.FailedExecutions() {
			for _, e := range exec.Errors {
				pattern := DerivePattern(e)
				fp := filePattern(e.File)
				key := clusterKey(e.Tool, pattern, fp)

				c, ok := clusters[key]
				if !ok {
					c = &cluster{
						tool:     e.Tool,
						pattern:  pattern,
						filePat:  fp,
						beadIDs:  map[string]bool{},
						files:    map[string]bool{},
						allError: true,
					}
					clusters[key] = c
				}
				c.beadIDs[trace.BeadID] = true
				if e.File != "" {
					c.files[e.File] = true
				}
				c.messages = append(c.messages, e.Message)
				if e.Severity != SeverityError {
					c.allError = false
				}
			}
		}
	}

	return clusters
}

func (r *Reflector) clustersToInsights(clusters map[string]*cluster, confidenceMultiplier float64, extraTags []string) []Insight {
	var insights []Insight

	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		c := clusters[key]
		if len(c.messages) < minClusterFrequency {
			continue
		}

		confidence, _ := Confidence(ConfidenceInputs{
			Frequency:        len(c.messages),
			BeadCount:        len(c.beadIDs),
			FileCount:        len(c.files),
			AllSeverityError: c.allError,
			ScopeMatch:       MatchesScope(sortedFileList(c.files), hotPathGlobs),
		})
		confidence *= confidenceMultiplier
		if confidence > 1 {
			confidence = 1
		}

		insights = append(insights, Insight{
			ID:        r.newID(),
			Timestamp: r.timestamp(),
			TaskID:    "",
			Source: Source{
				Runner:  string(c.tool),
				BeadIDs: sortedSet(c.beadIDs),
			},
			Signal: Signal{
				Pattern:  c.pattern,
				Evidence: c.messages,
			},
			Recommendation: recommendationFor(c.tool, c.pattern),
			Scope:          sortedFileList(c.files),
			Confidence:     confidence,
			OnlineEligible: confidence >= 0.8,
			MetaTags:       append([]string{string(c.tool)}, extraTags...),
		})
	}

	return insights
}

func sortedSet(set map[string]bool) []string {
	list := make([]string, 0, len(set))
	for k := range set {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

// threadBoost caps a boosted confidence value at 1.0.
func threadBoost(base, factor float64) float64 {
	v := base * factor
	if v > 1 {
		v = 1
	}
	return v
}

// BatchWithThreads enriches Batch with thread-context awareness (spec.md
// Section 4.4, "Thread-context enrichment"): per-thread clusters get a
// 1.2x confidence boost (capped at 1.0) and are tagged "thread-specific";
// patterns recurring across >=2 distinct threads additionally emit a
// cross-thread "systemic" insight with a 1.5x boost (capped at 1.0).
// Traces without a ThreadID are excluded from this enrichment and
// degrade to the plain Batch behavior for those traces.
func (r *Reflector) BatchWithThreads(traces []ExecutionTrace) []Insight {
	threaded := map[string][]ExecutionTrace{}
	var unthreaded []ExecutionTrace

	for _, t := range traces {
		if t.ThreadID == "" {
			unthreaded = append(unthreaded, t)
			continue
		}
		threaded[t.ThreadID] = append(threaded[t.ThreadID], t)
	}

	var insights []Insight
	insights = append(insights, r.Batch(unthreaded)...)

	threadIDs := make([]string, 0, len(threaded))
	for id := range threaded {
		threadIDs = append(threadIDs, id)
	}
	sort.Strings(threadIDs)

	patternThreads := map[string]map[string]bool{} // cluster key (sans thread) -> threads it appeared in
	patternClusters := map[string]*cluster{}

	for _, tid := range threadIDs {
		clusters := r.buildClusters(threaded[tid])
		boosted := map[string]*cluster{}
		for k, c := range clusters {
			boosted[k] = c

			if patternThreads[k] == nil {
				patternThreads[k] = map[string]bool{}
			}
			patternThreads[k][tid] = true
			patternClusters[k] = mergeCluster(patternClusters[k], c)
		}
		perThread := r.clustersToInsightsBoosted(boosted, 1.2, []string{"thread-specific"})
		insights = append(insights, perThread...)
	}

	var systemicKeys []string
	for k, threads := range patternThreads {
		if len(threads) >= 2 {
			systemicKeys = append(systemicKeys, k)
		}
	}
	sort.Strings(systemicKeys)

	systemic := map[string]*cluster{}
	for _, k := range systemicKeys {
		systemic[k] = patternClusters[k]
	}
	insights = append(insights, r.clustersToInsightsBoosted(systemic, 1.5, []string{"systemic"})...)

	return insights
}

func (r *Reflector) clustersToInsightsBoosted(clusters map[string]*cluster, factor float64, extraTags []string) []Insight {
	var insights []Insight
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		c := clusters[key]
		if len(c.messages) < minClusterFrequency {
			continue
		}
		base, _ := Confidence(ConfidenceInputs{
			Frequency:        len(c.messages),
			BeadCount:        len(c.beadIDs),
			FileCount:        len(c.files),
			AllSeverityError: c.allError,
			ScopeMatch:       MatchesScope(sortedFileList(c.files), hotPathGlobs),
		})
		confidence := threadBoost(base, factor)

		insights = append(insights, Insight{
			ID:        r.newID(),
			Timestamp: r.timestamp(),
			Source: Source{
				Runner:  string(c.tool),
				BeadIDs: sortedSet(c.beadIDs),
			},
			Signal: Signal{
				Pattern:  c.pattern,
				Evidence: c.messages,
			},
			Recommendation: recommendationFor(c.tool, c.pattern),
			Scope:          sortedFileList(c.files),
			Confidence:     confidence,
			OnlineEligible: confidence >= 0.8,
			MetaTags:       append([]string{string(c.tool)}, extraTags...),
		})
	}
	return insights
}

func mergeCluster(dst *cluster, src *cluster) *cluster {
	if dst == nil {
		dst = &cluster{
			tool:     src.tool,
			pattern:  src.pattern,
			filePat:  src.filePat,
			beadIDs:  map[string]bool{},
			files:    map[string]bool{},
			allError: true,
		}
	}
	for id := range src.beadIDs {
		dst.beadIDs[id] = true
	}
	for f := range src.files {
		dst.files[f] = true
	}
	dst.messages = append(dst.messages, src.messages...)
	if !src.allError {
		dst.allError = false
	}
	return dst
}
