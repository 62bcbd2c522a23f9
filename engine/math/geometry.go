package math

// GeometryGenerateNormals computes a face normal per triangle and assigns it
// to the triangle's three vertices.
// NOTE: This just generates face normals. Smoothing out should be done in a
// separate pass if desired.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint16) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}
