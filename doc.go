/*
go-featdetect provides keypoint based object class detection built on
OpenCV through gocv.  A reference database is built from a directory of
example photos per object class.  Each frame is matched against every class
with Lowe's ratio test, a RANSAC homography localizes the matched reference
image in the scene, and a per class counter records how many frames the
class was seen in.

Classes are tried in database order and within a class the first reference
image that both matches and localizes wins, giving at most one detection per
class per frame.

See example code and usage in the example/detect subdirectory.
*/
package featdetect
