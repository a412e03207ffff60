package coverage

var CompactRanges = compactRanges
