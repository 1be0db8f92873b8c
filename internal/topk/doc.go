// Package topk implements a top-K selection operator over (N, C, H, W)
// tensors.
//
// The operator has three steps, called by a host engine in order:
//
//   - Reshape resolves output shapes from the input, score and K-source
//     shapes before any buffer is allocated. K is the leading dimension of
//     the K-source tensor.
//   - Forward gathers the K best candidates (rows along axis 0) ranked by
//     one score per candidate, and records their original positions.
//   - Backward scatter-adds upstream gradients into a full-size gradient at
//     the positions recorded by the paired Forward call.
//
// Ranking is deterministic: larger scores first, ties broken by the smaller
// original index, NaN scores ranked below every number.
//
// Example:
//
//	plan, err := topk.Reshape(input.Shape(), scores.Shape(), kSource.Shape(), true)
//	if err != nil {
//	    return err
//	}
//	sel, _ := topk.New()
//	res, err := sel.Forward(plan, input, scores)
//	...
//	grad, err := sel.Backward(upstream, res.Indices, plan.Candidates)
package topk
