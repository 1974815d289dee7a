/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package boosting

import (
	"fmt"
	"math"
	"sort"
)

// leafIndex marks a node without children.
const leafIndex = -1

// Node is one node of a flattened regression tree. Rows with
// row[Feature] < Threshold go to Left, the others to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Gain      float64 `json:"gain,omitempty"`
	Cover     float64 `json:"cover"`
}

// IsLeaf returns true if the node has no children.
func (n *Node) IsLeaf() bool {
	return n.Left == leafIndex
}

// Tree is a regression tree stored in preorder, Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks the tree for a single row.
func (t *Tree) Predict(row []float64) float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.IsLeaf() {
			return node.Value
		}

		if row[node.Feature] < node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// validate checks that every child index points forward, so walking always terminates.
func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}

	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.IsLeaf() {
			if node.Right != leafIndex {
				return fmt.Errorf("leaf %d has a right child", i)
			}

			if math.IsNaN(node.Value) || math.IsInf(node.Value, 0) {
				return fmt.Errorf("leaf %d has non-finite value", i)
			}
			continue
		}

		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.Feature, numFeatures)
		}

		if node.Left <= i || node.Left >= len(t.Nodes) || node.Right <= i || node.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has children out of range", i)
		}

		if math.IsNaN(node.Threshold) {
			return fmt.Errorf("node %d has NaN threshold", i)
		}
	}

	return nil
}

// treeBuilder grows one tree by exact greedy split search.
type treeBuilder struct {
	x       [][]float64
	grad    []float64
	hess    []float64
	params  Params
	nodes   []Node
	scratch []int
}

// build grows the subtree over rows and returns its root index.
func (b *treeBuilder) build(rows []int, depth int) (int, error) {
	var sumGrad, sumHess float64
	for _, r := range rows {
		sumGrad += b.grad[r]
		sumHess += b.hess[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature: leafIndex,
		Left:    leafIndex,
		Right:   leafIndex,
		Value:   b.leafWeight(sumGrad, sumHess),
		Cover:   sumHess,
	})

	if math.IsNaN(b.nodes[idx].Value) || math.IsInf(b.nodes[idx].Value, 0) {
		return 0, errDivergence("leaf weight")
	}

	if depth >= b.params.MaxTreeDepth || len(rows) < 2 || sumHess < 2*b.params.MinChildWeight {
		return idx, nil
	}

	feature, threshold, gain, ok := b.bestSplit(rows, sumGrad, sumHess)
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return 0, errDivergence("split gain")
	}

	if !ok {
		return idx, nil
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][feature] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	leftIdx, err := b.build(left, depth+1)
	if err != nil {
		return 0, err
	}

	rightIdx, err := b.build(right, depth+1)
	if err != nil {
		return 0, err
	}

	node := &b.nodes[idx]
	node.Feature = feature
	node.Threshold = threshold
	node.Left = leftIdx
	node.Right = rightIdx
	node.Gain = gain
	node.Value = 0
	return idx, nil
}

// bestSplit scans every feature in sorted order and returns the split with the largest positive gain.
func (b *treeBuilder) bestSplit(rows []int, sumGrad, sumHess float64) (int, float64, float64, bool) {
	var (
		bestFeature   int
		bestThreshold float64
		bestGain      float64
		found         bool
	)

	parentScore := score(sumGrad, sumHess, b.params.Lambda)
	sorted := b.scratch[:0]
	sorted = append(sorted, rows...)

	numFeatures := len(b.x[rows[0]])
	for f := 0; f < numFeatures; f++ {
		sort.Slice(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})

		var leftGrad, leftHess float64
		for i := 0; i < len(sorted)-1; i++ {
			r := sorted[i]
			leftGrad += b.grad[r]
			leftHess += b.hess[r]

			cur, next := b.x[r][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}

			rightGrad, rightHess := sumGrad-leftGrad, sumHess-leftHess
			if leftHess < b.params.MinChildWeight || rightHess < b.params.MinChildWeight {
				continue
			}

			gain := 0.5 * (score(leftGrad, leftHess, b.params.Lambda) + score(rightGrad, rightHess, b.params.Lambda) - parentScore)
			if math.IsNaN(gain) || math.IsInf(gain, 0) {
				return 0, 0, gain, false
			}

			if gain > bestGain {
				threshold := cur + (next-cur)/2
				if threshold <= cur {
					threshold = next
				}

				bestFeature = f
				bestThreshold = threshold
				bestGain = gain
				found = true
			}
		}
	}

	b.scratch = sorted
	return bestFeature, bestThreshold, bestGain, found
}

func (b *treeBuilder) leafWeight(sumGrad, sumHess float64) float64 {
	return -sumGrad / (sumHess + b.params.Lambda) * b.params.LearningRate
}

func score(sumGrad, sumHess, lambda float64) float64 {
	return sumGrad * sumGrad / (sumHess + lambda)
}
