package catalog

import "sort"

// RankVideos stable-sorts videos so the ones published by a preferred teacher come first.
// The relative order within each group is preserved.
func RankVideos(videos []VideoDetail, preferredTeacherIDs []string) []VideoDetail {
	preferred := make(map[string]struct{}, len(preferredTeacherIDs))
	for _, id := range preferredTeacherIDs {
		preferred[id] = struct{}{}
	}
	isPreferred := func(v VideoDetail) bool {
		if !v.TeacherID.Valid {
			return false
		}
		_, ok := preferred[v.TeacherID.String]
		return ok
	}

	ranked := make([]VideoDetail, len(videos))
	copy(ranked, videos)
	sort.SliceStable(ranked, func(i, j int) bool {
		return isPreferred(ranked[i]) && !isPreferred(ranked[j])
	})
	return ranked
}
