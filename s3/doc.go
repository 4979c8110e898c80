// Package s3 binds the transfer engine to S3-compatible object storage:
// bucket provisioning with scoped temporary credentials, a data source and
// sink for the pipeline, and the status checker watching for the completion
// marker. The binding works against AWS S3 as well as S3-compatible stores
// such as MinIO, selected through the endpoint address property.
package s3
